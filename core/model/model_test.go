package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalnet/dti/pkg/errors"
)

type gobbable struct {
	Weights []float64
	State   *StateManager
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	err := s.RequireFitted("MLPRegressor", "Predict")
	var notFitted *errors.NotFittedError
	require.True(t, errors.As(err, &notFitted))
	assert.Equal(t, "Predict", notFitted.Method)

	s.SetDimensions(12, 100)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("MLPRegressor", "Predict"))
	assert.NoError(t, s.RequireFeatures("Predict", 12))

	err = s.RequireFeatures("Predict", 3)
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 12, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)

	s.Reset()
	assert.False(t, s.IsFitted())
	f, n := s.GetDimensions()
	assert.Zero(t, f)
	assert.Zero(t, n)
}

func TestSaveLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gob")

	state := NewStateManager()
	state.SetDimensions(3, 10)
	state.SetFitted()
	in := &gobbable{Weights: []float64{0.5, -1, 2}, State: state}
	require.NoError(t, SaveModel(in, path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be renamed away")

	var out gobbable
	require.NoError(t, LoadModel(&out, path))
	assert.Equal(t, in.Weights, out.Weights)
	assert.True(t, out.State.IsFitted())
	nf, _ := out.State.GetDimensions()
	assert.Equal(t, 3, nf)
}

func TestLoadModelErrors(t *testing.T) {
	var out gobbable
	err := LoadModel(&out, filepath.Join(t.TempDir(), "missing.gob"))
	var modelErr *errors.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "open file", modelErr.Kind)

	err = LoadModelFromReader(&out, bytes.NewBufferString("not gob"))
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "decode model", modelErr.Kind)
}

func TestManifestRoundTrip(t *testing.T) {
	type hyper struct {
		HiddenDims []int   `json:"hidden_dims"`
		LR         float64 `json:"learning_rate"`
	}
	m, err := NewManifest("MLPRegressor", 1367, hyper{HiddenDims: []int{512, 256}, LR: 5e-4})
	require.NoError(t, err)
	m.Metadata["drug_encoding"] = "Morgan"

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, m.WriteFile(path))

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "MLPRegressor", got.ModelType)
	assert.Equal(t, 1367, got.NFeatures)
	assert.Equal(t, "Morgan", got.Metadata["drug_encoding"])

	var h hyper
	require.NoError(t, got.DecodeHyperparameters(&h))
	assert.Equal(t, []int{512, 256}, h.HiddenDims)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		param string
	}{
		{name: "no type", json: `{"version":"1","is_fitted":true,"hyperparameters":{}}`, param: "model_type"},
		{name: "bad version", json: `{"model_type":"X","version":"9","is_fitted":true,"hyperparameters":{}}`, param: "version"},
		{name: "unfitted", json: `{"model_type":"X","version":"1","hyperparameters":{}}`, param: "is_fitted"},
		{name: "no hyperparameters", json: `{"model_type":"X","version":"1","is_fitted":true}`, param: "hyperparameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Manifest{}).FromJSON([]byte(tt.json))
			var v *errors.ValidationError
			require.True(t, errors.As(err, &v))
			assert.Equal(t, tt.param, v.ParamName)
		})
	}
}
