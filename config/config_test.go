package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/pkg/errors"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())

	job := cfg.Training.JobConfig()
	assert.Equal(t, "Morgan", job.DrugEncoding)
	assert.Equal(t, "Conjoint_triad", job.TargetEncoding)
	assert.Equal(t, []int{512, 256}, job.HiddenDims)
	assert.Equal(t, 5e-4, job.LearningRate)
	assert.Equal(t, 32, job.BatchSize)
	assert.Equal(t, 10, job.Epochs)
	assert.Equal(t, dataset.Fractions{Train: 0.7, Validation: 0.1, Test: 0.2}, job.Fractions)
	assert.Zero(t, job.Seed)

	job.HiddenDims[0] = 1
	assert.Equal(t, 512, cfg.Training.HiddenDims[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, param: "server.port"},
		{name: "upload", mutate: func(c *Config) { c.Server.MaxUploadMB = 0 }, param: "server.maxUploadMB"},
		{name: "media root", mutate: func(c *Config) { c.Storage.MediaRoot = "" }, param: "storage.mediaRoot"},
		{name: "weights ext", mutate: func(c *Config) { c.Archive.WeightsExt = "gob" }, param: "archive.weightsExt"},
		{name: "config ext", mutate: func(c *Config) { c.Archive.ConfigExt = "json" }, param: "archive.configExt"},
		{name: "epochs", mutate: func(c *Config) { c.Training.Epochs = 0 }, param: "epochs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			var v *errors.ValidationError
			require.True(t, errors.As(err, &v), "got %v", err)
			assert.Equal(t, tt.param, v.ParamName)
		})
	}

	cfg := New()
	cfg.Training.TestFrac = 0.5
	var split *errors.InvalidSplitError
	assert.True(t, errors.As(cfg.Validate(), &split))

	cfg = New()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pharmalnet.yaml")
	body := `
server:
  port: 9090
storage:
  mediaRoot: ` + filepath.Join(dir, "media") + `
training:
  targetEncoding: AAC
  hiddenDims: [64, 32]
  epochs: 3
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("PHARMALNET_TRAINING_SEED", "17")
	t.Setenv("PHARMALNET_SERVER_HOST", "127.0.0.1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, int64(DefaultMaxUploadMB), cfg.Server.MaxUploadMB)
	assert.Equal(t, "AAC", cfg.Training.TargetEncoding)
	assert.Equal(t, "Morgan", cfg.Training.DrugEncoding)
	assert.Equal(t, []int{64, 32}, cfg.Training.HiddenDims)
	assert.Equal(t, 3, cfg.Training.Epochs)
	assert.Equal(t, int64(17), cfg.Training.Seed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ".gob", cfg.Archive.WeightsExt)

	require.NoError(t, cfg.EnsureDirs())
	assert.DirExists(t, filepath.Join(dir, "media"))
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
