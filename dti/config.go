// Package dti is the trainable drug–target interaction model behind a narrow capability
// interface: a Factory configures a Trainable from a JobConfig, Train fits it on the three
// partitions, and the resulting Model predicts, saves itself, and can be reconstructed
// from a saved directory.
package dti

import (
	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/featurize"
	"github.com/pharmalnet/dti/pkg/errors"
)

// JobConfig is the configuration of one training job. It is passed by value and not
// modified once a job starts.
type JobConfig struct {
	DrugEncoding   string            `json:"drug_encoding" yaml:"drugEncoding" mapstructure:"drugEncoding"`
	TargetEncoding string            `json:"target_encoding" yaml:"targetEncoding" mapstructure:"targetEncoding"`
	HiddenDims     []int             `json:"hidden_dims" yaml:"hiddenDims" mapstructure:"hiddenDims"`
	LearningRate   float64           `json:"learning_rate" yaml:"learningRate" mapstructure:"learningRate"`
	BatchSize      int               `json:"batch_size" yaml:"batchSize" mapstructure:"batchSize"`
	Epochs         int               `json:"epochs" yaml:"epochs" mapstructure:"epochs"`
	Fractions      dataset.Fractions `json:"fractions" yaml:"fractions" mapstructure:"fractions"`
	// Seed 0 draws a fresh seed per job.
	Seed int64 `json:"seed" yaml:"seed" mapstructure:"seed"`
}

// DefaultJobConfig returns Morgan / Conjoint_triad encodings, hidden layers [512, 256],
// learning rate 5e-4, batch size 32, 10 epochs and a 0.7/0.1/0.2 split.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		DrugEncoding:   featurize.MorganName,
		TargetEncoding: featurize.ConjointTriadName,
		HiddenDims:     []int{512, 256},
		LearningRate:   5e-4,
		BatchSize:      32,
		Epochs:         10,
		Fractions:      dataset.DefaultFractions,
	}
}

// WithSeed returns a copy of c whose Seed is resolved: c.Seed when set, a fresh random
// seed otherwise.
func (c JobConfig) WithSeed() JobConfig {
	if c.Seed == 0 {
		c.Seed = dataset.RandomSeed()
	}
	c.HiddenDims = append([]int(nil), c.HiddenDims...)
	return c
}

// Validate checks hyperparameters, split fractions and encoding names.
func (c JobConfig) Validate() error {
	if _, err := featurize.NewPair(c.DrugEncoding, c.TargetEncoding); err != nil {
		return err
	}
	if len(c.HiddenDims) == 0 {
		return errors.NewValidationError("hidden_dims", "at least one hidden layer is required", c.HiddenDims)
	}
	for _, d := range c.HiddenDims {
		if d <= 0 {
			return errors.NewValidationError("hidden_dims", "layer widths must be positive", c.HiddenDims)
		}
	}
	if !(c.LearningRate > 0) {
		return errors.NewValidationError("learning_rate", "must be positive", c.LearningRate)
	}
	if c.BatchSize <= 0 {
		return errors.NewValidationError("batch_size", "must be positive", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return errors.NewValidationError("epochs", "must be positive", c.Epochs)
	}
	if c.Seed < 0 {
		return errors.NewValidationError("seed", "must not be negative", c.Seed)
	}
	return c.Fractions.Validate()
}
