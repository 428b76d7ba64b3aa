package serialize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/pkg/errors"
)

type score float64

type label string

type point struct{ X, Y int }

type panicky struct{}

func (panicky) String() string { panic("boom") }

func TestToTransportSafe(t *testing.T) {
	f := 2.5
	var nilPtr *float64
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"NaN", math.NaN(), nil},
		{"+Inf", math.Inf(1), nil},
		{"-Inf", math.Inf(-1), nil},
		{"float64", 1.25, 1.25},
		{"float32", float32(0.5), 0.5},
		{"float32 NaN", float32(math.NaN()), nil},
		{"int", 3, int64(3)},
		{"uint8", uint8(7), int64(7)},
		{"named float", score(0.75), 0.75},
		{"named string", label("abc"), "abc"},
		{"bool", true, true},
		{"string", "CCO", "CCO"},
		{"json int", json.Number("12"), int64(12)},
		{"json float", json.Number("1e3"), 1000.0},
		{"pointer", &f, 2.5},
		{"nil pointer", nilPtr, nil},
		{"one element slice", []float64{4}, 4.0},
		{"one element array", [1]float32{2}, 2.0},
		{"nested one element", [][]float64{{math.NaN()}}, nil},
		{"vector", mat.NewVecDense(1, []float64{-1.5}), -1.5},
		{"matrix", mat.NewDense(1, 1, []float64{9}), 9.0},
		{"long slice", []int{1, 2}, "[1 2]"},
		{"struct", point{1, 2}, "{1 2}"},
		{"error", errors.New("bad"), "bad"},
		{"panicking stringer", panicky{}, "%!v(PANIC=String method: boom)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToTransportSafe(tt.in)
			assert.Equal(t, tt.want, got)
			_, err := json.Marshal(got)
			assert.NoError(t, err)
		})
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"NA", nil},
		{"nan", nil},
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"0.5", 0.5},
		{"1e-3", 0.001},
		{"inf", nil},
		{"MKTAYIAK", "MKTAYIAK"},
		{"CC(=O)O", "CC(=O)O"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Cell(tt.in))
		})
	}
}

func TestRecords(t *testing.T) {
	table := &dataset.Table{
		Columns: []string{"Smiles", "seq1", "IC50"},
		Rows: [][]string{
			{"CCO", "MKT", "100"},
			{"CCN", "MKTA", "NA"},
			{"CCC", "MK"},
		},
	}
	recs := Records(table, map[string][]any{
		"Predicted": {1.5, math.NaN()},
	})
	require.Len(t, recs, 3)
	assert.Equal(t, map[string]any{"Smiles": "CCO", "seq1": "MKT", "IC50": int64(100), "Predicted": 1.5}, recs[0])
	assert.Equal(t, map[string]any{"Smiles": "CCN", "seq1": "MKTA", "IC50": nil, "Predicted": nil}, recs[1])
	assert.Equal(t, map[string]any{"Smiles": "CCC", "seq1": "MK", "IC50": nil}, recs[2])

	_, err := json.Marshal(recs)
	assert.NoError(t, err)
	assert.Empty(t, Records(nil, nil))
}
