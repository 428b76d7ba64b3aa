package pipeline

import (
	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
)

// Default column names of a batch inference table.
const (
	DefaultCompoundCol = "Smiles"
	DefaultSequenceCol = "seq1"
)

// BatchRequest scores every complete row of Table.
type BatchRequest struct {
	Table       *dataset.Table
	CompoundCol string // DefaultCompoundCol when empty
	SequenceCol string // DefaultSequenceCol when empty
}

// SingleRequest scores one compound/sequence pair.
type SingleRequest struct {
	Compound string
	Sequence string
}

// BatchResult holds predictions aligned with the kept rows. Rows are indexes into the
// request table.
type BatchResult struct {
	Rows        []int
	Predictions []float64
	Dropped     int
}

// Executor runs inference with a reconstructed model.
type Executor struct {
	Logger log.Logger
}

// NewExecutor returns an Executor with the named package logger.
func NewExecutor() *Executor {
	return &Executor{Logger: log.GetLoggerWithName("executor")}
}

// placeholderLabels builds the label column the model interface requires at inference
// time. Its values are never read back.
func placeholderLabels(n int) []float64 {
	return make([]float64, n)
}

// PredictBatch scores the rows of req.Table whose compound and sequence are both present.
func (e *Executor) PredictBatch(m dti.Model, req BatchRequest) (*BatchResult, error) {
	if req.Table == nil {
		return nil, errors.NewEmptyInputError("no table")
	}
	compoundCol, sequenceCol := req.CompoundCol, req.SequenceCol
	if compoundCol == "" {
		compoundCol = DefaultCompoundCol
	}
	if sequenceCol == "" {
		sequenceCol = DefaultSequenceCol
	}
	idx, err := req.Table.Require(compoundCol, sequenceCol)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{}
	var compounds, sequences []string
	for i := range req.Table.Rows {
		c, s := req.Table.Cell(i, idx[0]), req.Table.Cell(i, idx[1])
		if dataset.IsMissing(c) || dataset.IsMissing(s) {
			res.Dropped++
			continue
		}
		res.Rows = append(res.Rows, i)
		compounds = append(compounds, c)
		sequences = append(sequences, s)
	}
	if len(res.Rows) == 0 {
		return nil, errors.NewEmptyInputError("no row has both a compound and a sequence")
	}

	preds, err := e.score(m, compounds, sequences)
	if err != nil {
		return nil, err
	}
	res.Predictions = preds
	e.logger().Info("Batch inference finished",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, len(res.Rows),
		log.DroppedRowsKey, res.Dropped,
	)
	return res, nil
}

// PredictOne scores a single pair and returns exactly one value.
func (e *Executor) PredictOne(m dti.Model, req SingleRequest) (float64, error) {
	if dataset.IsMissing(req.Compound) || dataset.IsMissing(req.Sequence) {
		return 0, errors.NewEmptyInputError("compound and sequence are both required")
	}
	preds, err := e.score(m, []string{req.Compound}, []string{req.Sequence})
	if err != nil {
		return 0, err
	}
	return preds[0], nil
}

func (e *Executor) score(m dti.Model, compounds, sequences []string) (preds []float64, err error) {
	defer func() {
		if err != nil {
			var inf *errors.InferenceError
			if errors.As(err, &inf) {
				return
			}
			stage := "predict"
			var bad *errors.ValueError
			if errors.As(err, &bad) {
				stage = "encode"
			}
			err = errors.NewInferenceError(stage, err)
		}
	}()
	defer errors.Recover(&err, "Executor.Predict")

	preds, err = m.Predict(compounds, sequences, placeholderLabels(len(compounds)))
	if err != nil {
		return nil, err
	}
	if len(preds) != len(compounds) {
		return nil, errors.NewInferenceError("predict",
			errors.NewDimensionError("Executor.Predict", len(compounds), len(preds), 0))
	}
	return preds, nil
}

func (e *Executor) logger() log.Logger {
	if e.Logger == nil {
		return log.GetLoggerWithName("executor")
	}
	return e.Logger
}
