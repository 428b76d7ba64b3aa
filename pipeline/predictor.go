package pipeline

import (
	"context"

	"github.com/pharmalnet/dti/archive"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/serialize"
)

// PredictedField is the record key holding the prediction.
const PredictedField = "Predicted"

// PreviewSize is the number of records in a batch preview.
const PreviewSize = 5

// BatchPrediction is a serialised batch inference result. Every input row is present;
// rows dropped for missing values have a nil prediction.
type BatchPrediction struct {
	TotalRecords int              `json:"total_records"`
	Preview      []map[string]any `json:"preview"`
	FullData     []map[string]any `json:"full_data"`
}

// Predictor loads a model from an archive, file or directory and runs inference with it.
type Predictor struct {
	Inspector   *archive.Inspector
	Executor    *Executor
	Reconstruct func(dir, weightsExt, configExt string) (dti.Model, error)
}

// NewPredictor returns a Predictor extracting archives under workRoot.
func NewPredictor(workRoot string) *Predictor {
	return &Predictor{
		Inspector:   archive.NewInspector(workRoot),
		Executor:    NewExecutor(),
		Reconstruct: dti.ReconstructWith,
	}
}

// Load locates and reconstructs the model at path. Extracted files are removed before it
// returns.
func (p *Predictor) Load(ctx context.Context, path string) (dti.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc, err := p.Inspector.LocateModel(path)
	if err != nil {
		return nil, err
	}
	defer loc.Cleanup()
	weightsExt, configExt := p.Inspector.Extensions()
	return p.Reconstruct(loc.ModelDir, weightsExt, configExt)
}

// PredictBatch loads the model at modelPath and scores req.
func (p *Predictor) PredictBatch(ctx context.Context, modelPath string, req BatchRequest) (*BatchPrediction, error) {
	m, err := p.Load(ctx, modelPath)
	if err != nil {
		return nil, err
	}
	res, err := p.Executor.PredictBatch(m, req)
	if err != nil {
		return nil, err
	}

	column := make([]any, req.Table.Len())
	for i, row := range res.Rows {
		column[row] = res.Predictions[i]
	}
	full := serialize.Records(req.Table, map[string][]any{PredictedField: column})
	return &BatchPrediction{
		TotalRecords: len(full),
		Preview:      full[:min(PreviewSize, len(full))],
		FullData:     full,
	}, nil
}

// PredictOne loads the model at modelPath and scores one pair. The value is transport safe:
// nil for a non-finite prediction.
func (p *Predictor) PredictOne(ctx context.Context, modelPath string, req SingleRequest) (any, error) {
	m, err := p.Load(ctx, modelPath)
	if err != nil {
		return nil, err
	}
	v, err := p.Executor.PredictOne(m, req)
	if err != nil {
		return nil, err
	}
	return serialize.ToTransportSafe(v), nil
}
