package dti

import (
	"context"

	"github.com/pharmalnet/dti/dataset"
)

// File names written by Model.Save.
const (
	WeightsFile = "model.gob"
	ConfigFile  = "config.json"
	ResultFile  = "result.json"
)

// Trainable is a configured, not yet fitted model.
type Trainable interface {
	// Train fits on train, selects by validation, and reports on test. It is synchronous;
	// ctx is checked between epochs.
	Train(ctx context.Context, train, validation, test []dataset.Row) (Model, error)
}

// Factory configures a Trainable for a job.
type Factory func(cfg JobConfig) (Trainable, error)

// Model is a fitted model handle.
type Model interface {
	// Predict scores aligned compound/sequence pairs. labels must have the same length;
	// their values are not used for scoring.
	Predict(compounds, sequences []string, labels []float64) ([]float64, error)

	// Encodings returns the names of the drug and target encodings used for training.
	Encodings() (drug, target string)

	// Save writes WeightsFile, ConfigFile and ResultFile into dir and returns their paths.
	Save(dir string) ([]string, error)

	// Result returns the training record.
	Result() TrainingResult
}

// TrainingResult is the training record written to ResultFile.
type TrainingResult struct {
	Seed           int64        `json:"seed"`
	TrainSize      int          `json:"train_size"`
	ValidationSize int          `json:"validation_size"`
	TestSize       int          `json:"test_size"`
	BestEpoch      int          `json:"best_epoch"`
	History        []EpochEntry `json:"history"`
	TestMSE        *float64     `json:"test_mse,omitempty"`
}

// EpochEntry is one row of the training history.
type EpochEntry struct {
	Epoch         int     `json:"epoch" csv:"epoch"`
	TrainLoss     float64 `json:"train_loss" csv:"train_loss"`
	ValidationMSE float64 `json:"validation_mse" csv:"validation_mse"`
}
