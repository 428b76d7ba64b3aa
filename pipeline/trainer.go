package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/pharmalnet/dti/archive"
	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
	"github.com/pharmalnet/dti/storage"
)

// TrainRequest is one training job.
type TrainRequest struct {
	Table       *dataset.Table
	CompoundCol string
	SequenceCol string
	LabelCol    string
	ModelName   string
	Config      dti.JobConfig
}

// TrainOutcome is the result of a finished training job. The archive and the graph live in
// job-scoped directories until Cleanup.
type TrainOutcome struct {
	JobID      string
	Config     dti.JobConfig // Seed resolved
	Cleaned    *dataset.Cleaned
	Split      *dataset.SplitSpec
	Model      dti.Model
	Evaluation *Evaluation
	Archive    *archive.ModelArchive

	jobDir string
}

// Cleanup removes the job directories.
func (o *TrainOutcome) Cleanup() error {
	if o == nil {
		return nil
	}
	var err error
	if o.Archive != nil {
		err = o.Archive.Cleanup()
	}
	if o.jobDir != "" {
		if rerr := os.RemoveAll(o.jobDir); err == nil {
			err = rerr
		}
	}
	return err
}

// Trainer chains Clean, Split, Train, Evaluate and Package.
type Trainer struct {
	WorkRoot     string
	Orchestrator *Orchestrator
	Packager     *archive.Packager
	Logger       log.Logger
}

// NewTrainer returns a Trainer whose job directories live under workRoot.
func NewTrainer(workRoot string, factory dti.Factory) *Trainer {
	return &Trainer{
		WorkRoot:     workRoot,
		Orchestrator: NewOrchestrator(factory),
		Packager:     archive.NewPackager(workRoot),
		Logger:       log.GetLoggerWithName("trainer"),
	}
}

// Run executes a training job. ctx is checked between stages and between epochs.
func (t *Trainer) Run(ctx context.Context, req TrainRequest) (_ *TrainOutcome, err error) {
	out := &TrainOutcome{JobID: storage.NewJobID()}
	defer func() {
		if err != nil {
			_ = out.Cleanup()
		}
	}()
	logger := t.logger().With(log.JobIDKey, out.JobID)
	start := time.Now()

	out.Config = req.Config.WithSeed()
	if err := out.Config.Validate(); err != nil {
		return nil, err
	}

	out.Cleaned, err = dataset.Clean(req.Table, req.CompoundCol, req.SequenceCol, req.LabelCol)
	if err != nil {
		return nil, err
	}
	stats := out.Cleaned.SeqLenStats()
	logger.Info("Dataset cleaned",
		log.OriginalRowsKey, out.Cleaned.OriginalRows,
		log.SamplesKey, out.Cleaned.Len(),
		log.DroppedRowsKey, out.Cleaned.OriginalRows-out.Cleaned.Len(),
		log.SeqLenKey, stats.Mean,
	)

	out.Split, err = dataset.Split(out.Cleaned, out.Config.Fractions, out.Config.Seed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.Model, err = t.Orchestrator.Train(ctx, out.Split, out.Config)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.jobDir, err = os.MkdirTemp(t.WorkRoot, "pharmalnet_job_")
	if err != nil {
		return nil, errors.Wrap(err, "create job directory")
	}
	out.Evaluation, err = NewEvaluator(out.jobDir).Evaluate(out.Model, out.Split.Test)
	if err != nil {
		return nil, err
	}

	out.Archive, err = t.Packager.Package(out.Model, out.Evaluation, req.ModelName)
	if err != nil {
		return nil, err
	}

	logger.Info("Training job finished",
		log.ModelNameKey, archive.SanitizeName(req.ModelName),
		log.ArchiveKey, out.Archive.ArchivePath,
		log.R2ScoreKey, out.Evaluation.R2,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (t *Trainer) logger() log.Logger {
	if t.Logger == nil {
		return log.GetLoggerWithName("trainer")
	}
	return t.Logger
}
