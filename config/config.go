// Package config holds the service configuration. Values come from defaults, an optional
// YAML file and PHARMALNET_* environment variables, in increasing priority.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

type Config struct {
	// Server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Storage configuration.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Training configuration, the defaults of every training job.
	Training TrainingConfig `yaml:"training" mapstructure:"training"`

	// Archive configuration.
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`

	// Log configuration.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Metrics configuration.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// CORS configuration.
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

type ServerConfig struct {
	// Host is listen host, like: 0.0.0.0, 127.0.0.1.
	Host string `yaml:"host" mapstructure:"host"`

	// Server port.
	Port int `yaml:"port" mapstructure:"port"`

	// MaxUploadMB is the maximum multipart body size in megabytes.
	MaxUploadMB int64 `yaml:"maxUploadMB" mapstructure:"maxUploadMB"`
}

type StorageConfig struct {
	// WorkDir holds job-scoped temporary directories. Empty means the OS temp dir.
	WorkDir string `yaml:"workDir" mapstructure:"workDir"`

	// MediaRoot holds stored archives and graphs.
	MediaRoot string `yaml:"mediaRoot" mapstructure:"mediaRoot"`

	// MediaURL prefixes download links.
	MediaURL string `yaml:"mediaURL" mapstructure:"mediaURL"`
}

type TrainingConfig struct {
	DrugEncoding   string  `yaml:"drugEncoding" mapstructure:"drugEncoding"`
	TargetEncoding string  `yaml:"targetEncoding" mapstructure:"targetEncoding"`
	HiddenDims     []int   `yaml:"hiddenDims" mapstructure:"hiddenDims"`
	LearningRate   float64 `yaml:"learningRate" mapstructure:"learningRate"`
	BatchSize      int     `yaml:"batchSize" mapstructure:"batchSize"`
	Epochs         int     `yaml:"epochs" mapstructure:"epochs"`
	TrainFrac      float64 `yaml:"trainFrac" mapstructure:"trainFrac"`
	ValFrac        float64 `yaml:"valFrac" mapstructure:"valFrac"`
	TestFrac       float64 `yaml:"testFrac" mapstructure:"testFrac"`

	// Seed 0 draws a fresh seed for every job.
	Seed int64 `yaml:"seed" mapstructure:"seed"`
}

type ArchiveConfig struct {
	// WeightsExt is the extension of the weights file.
	WeightsExt string `yaml:"weightsExt" mapstructure:"weightsExt"`

	// ConfigExt is the extension of the model configuration file.
	ConfigExt string `yaml:"configExt" mapstructure:"configExt"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`

	// Console enables human readable output.
	Console bool `yaml:"console" mapstructure:"console"`
}

type MetricsConfig struct {
	// Enable serves /metrics.
	Enable bool `yaml:"enable" mapstructure:"enable"`
}

type CORSConfig struct {
	// AllowOrigins lists allowed origins; "*" allows all.
	AllowOrigins []string `yaml:"allowOrigins" mapstructure:"allowOrigins"`
}

// New default configuration.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        DefaultServerHost,
			Port:        DefaultServerPort,
			MaxUploadMB: DefaultMaxUploadMB,
		},
		Storage: StorageConfig{
			WorkDir:   "",
			MediaRoot: filepath.Join(".", "media"),
			MediaURL:  DefaultMediaURL,
		},
		Training: TrainingConfig{
			DrugEncoding:   DefaultDrugEncoding,
			TargetEncoding: DefaultTargetEncoding,
			HiddenDims:     append([]int(nil), DefaultHiddenDims...),
			LearningRate:   DefaultLearningRate,
			BatchSize:      DefaultBatchSize,
			Epochs:         DefaultEpochs,
			TrainFrac:      DefaultTrainFrac,
			ValFrac:        DefaultValFrac,
			TestFrac:       DefaultTestFrac,
		},
		Archive: ArchiveConfig{
			WeightsExt: DefaultWeightsExt,
			ConfigExt:  DefaultConfigExt,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Metrics: MetricsConfig{
			Enable: true,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
	}
}

// Validate config parameters.
func (cfg *Config) Validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.NewValidationError("server.port", "must be between 1 and 65535", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadMB <= 0 {
		return errors.NewValidationError("server.maxUploadMB", "must be positive", cfg.Server.MaxUploadMB)
	}
	if cfg.Storage.MediaRoot == "" {
		return errors.NewValidationError("storage.mediaRoot", "is required", cfg.Storage.MediaRoot)
	}
	if !strings.HasPrefix(cfg.Archive.WeightsExt, ".") {
		return errors.NewValidationError("archive.weightsExt", "must start with a dot", cfg.Archive.WeightsExt)
	}
	if !strings.HasPrefix(cfg.Archive.ConfigExt, ".") {
		return errors.NewValidationError("archive.configExt", "must start with a dot", cfg.Archive.ConfigExt)
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	return cfg.Training.JobConfig().Validate()
}

// JobConfig converts the training defaults into a job configuration.
func (t TrainingConfig) JobConfig() dti.JobConfig {
	return dti.JobConfig{
		DrugEncoding:   t.DrugEncoding,
		TargetEncoding: t.TargetEncoding,
		HiddenDims:     append([]int(nil), t.HiddenDims...),
		LearningRate:   t.LearningRate,
		BatchSize:      t.BatchSize,
		Epochs:         t.Epochs,
		Fractions:      dataset.Fractions{Train: t.TrainFrac, Validation: t.ValFrac, Test: t.TestFrac},
		Seed:           t.Seed,
	}
}

// Load reads path (when not empty) over the defaults and applies PHARMALNET_* environment
// overrides, e.g. PHARMALNET_SERVER_PORT or PHARMALNET_TRAINING_EPOCHS.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViper returns a viper instance carrying every default key, so that environment
// variables are visible to Unmarshal.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := New()
	defaults := map[string]any{
		"server.host":             d.Server.Host,
		"server.port":             d.Server.Port,
		"server.maxUploadMB":      d.Server.MaxUploadMB,
		"storage.workDir":         d.Storage.WorkDir,
		"storage.mediaRoot":       d.Storage.MediaRoot,
		"storage.mediaURL":        d.Storage.MediaURL,
		"training.drugEncoding":   d.Training.DrugEncoding,
		"training.targetEncoding": d.Training.TargetEncoding,
		"training.hiddenDims":     d.Training.HiddenDims,
		"training.learningRate":   d.Training.LearningRate,
		"training.batchSize":      d.Training.BatchSize,
		"training.epochs":         d.Training.Epochs,
		"training.trainFrac":      d.Training.TrainFrac,
		"training.valFrac":        d.Training.ValFrac,
		"training.testFrac":       d.Training.TestFrac,
		"training.seed":           d.Training.Seed,
		"archive.weightsExt":      d.Archive.WeightsExt,
		"archive.configExt":       d.Archive.ConfigExt,
		"log.level":               d.Log.Level,
		"log.console":             d.Log.Console,
		"metrics.enable":          d.Metrics.Enable,
		"cors.allowOrigins":       d.CORS.AllowOrigins,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// EnsureDirs creates the work and media directories.
func (cfg *Config) EnsureDirs() error {
	for _, dir := range []string{cfg.Storage.WorkDir, cfg.Storage.MediaRoot} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	return nil
}
