// Package pipeline chains the training and inference stages: cleaning, splitting,
// training, evaluation, packaging, model discovery and prediction.
package pipeline

import (
	"context"
	"time"

	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

// Orchestrator configures and trains a model through a Factory.
type Orchestrator struct {
	Factory dti.Factory
	Logger  log.Logger
}

// NewOrchestrator returns an Orchestrator using the MLP factory when factory is nil.
func NewOrchestrator(factory dti.Factory) *Orchestrator {
	if factory == nil {
		factory = dti.NewMLPFactory()
	}
	return &Orchestrator{Factory: factory, Logger: log.GetLoggerWithName("orchestrator")}
}

// Train configures a trainable component from cfg and fits it on the split partitions in
// train, validation, test order. Any failure, panic included, is returned as TrainingError.
func (o *Orchestrator) Train(ctx context.Context, split *dataset.SplitSpec, cfg dti.JobConfig) (m dti.Model, err error) {
	defer func() {
		if err != nil {
			err = errors.NewTrainingError(err)
		}
	}()
	defer errors.Recover(&err, "Orchestrator.Train")

	if split == nil {
		return nil, errors.NewValueError("Orchestrator.Train", "split is nil")
	}
	logger := o.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("orchestrator")
	}
	trainSize, valSize, testSize := split.Sizes()
	logger.Info("Configuring model",
		log.DrugEncodingKey, cfg.DrugEncoding,
		log.TargetEncodingKey, cfg.TargetEncoding,
		log.RandomSeedKey, cfg.Seed,
		log.TrainSizeKey, trainSize,
		log.ValidationSizeKey, valSize,
		log.TestSizeKey, testSize,
	)

	trainable, err := o.Factory(cfg)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	m, err = trainable.Train(ctx, split.Train, split.Validation, split.Test)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.NewModelError("Orchestrator.Train", "trainer returned no model", nil)
	}
	logger.Info("Model trained",
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}
