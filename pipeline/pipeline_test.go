package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/dti"
	"github.com/pharmalnet/dti/featurize"
	"github.com/pharmalnet/dti/pkg/errors"
)

var (
	compounds = []string{"CCO", "CCN", "CC(=O)O", "c1ccccc1", "CCCl", "CC(C)O", "OCC(O)CO", "CN", "CCOC", "C1CCCCC1"}
	sequences = []string{"MKTAYIAK", "MKTAYIAKQR", "ACDEFGHIK", "LMNPQRSTVWY", "MKKLLPT", "GAVLIMFW", "PSTCYNQDE", "KRHKRH", "MMMKKK", "AAAAG"}
)

// trainingCSV returns n labelled rows with Smiles, seq1 and IC50 columns.
func trainingCSV(n int) string {
	var b strings.Builder
	b.WriteString("Smiles,seq1,IC50\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,%s,%d\n", compounds[i%len(compounds)], sequences[(i*3)%len(sequences)], 10*(i+1))
	}
	return b.String()
}

func readTable(t *testing.T, body string) *dataset.Table {
	t.Helper()
	table, err := dataset.ReadCSV(strings.NewReader(body))
	require.NoError(t, err)
	return table
}

func tinyJob() dti.JobConfig {
	cfg := dti.DefaultJobConfig()
	cfg.TargetEncoding = featurize.AACName
	cfg.HiddenDims = []int{8}
	cfg.Epochs = 2
	cfg.BatchSize = 8
	cfg.Seed = 7
	return cfg
}

// constModel predicts a fixed value, or fails or panics when asked to.
type constModel struct {
	value   float64
	fail    error
	panics  bool
	short   bool
	calls   int
	lastLen int
}

func (m *constModel) Predict(c, _ []string, labels []float64) ([]float64, error) {
	m.calls++
	m.lastLen = len(labels)
	if m.panics {
		panic("scoring exploded")
	}
	if m.fail != nil {
		return nil, m.fail
	}
	if m.short {
		return nil, nil
	}
	out := make([]float64, len(c))
	for i := range out {
		out[i] = m.value + float64(i)
	}
	return out, nil
}

func (m *constModel) Encodings() (string, string) { return "Morgan", "AAC" }

func (m *constModel) Save(string) ([]string, error) { return nil, nil }

func (m *constModel) Result() dti.TrainingResult { return dti.TrainingResult{} }

type trainableFunc func(ctx context.Context, train, validation, test []dataset.Row) (dti.Model, error)

func (f trainableFunc) Train(ctx context.Context, train, validation, test []dataset.Row) (dti.Model, error) {
	return f(ctx, train, validation, test)
}

func TestOrchestratorTrain(t *testing.T) {
	split := &dataset.SplitSpec{
		Train:      []dataset.Row{{Compound: "CCO"}},
		Validation: []dataset.Row{{Compound: "CCN"}},
		Test:       []dataset.Row{{Compound: "CCC"}},
	}

	t.Run("passes partitions in order", func(t *testing.T) {
		var got [3]string
		factory := func(dti.JobConfig) (dti.Trainable, error) {
			return trainableFunc(func(_ context.Context, tr, va, te []dataset.Row) (dti.Model, error) {
				got = [3]string{tr[0].Compound, va[0].Compound, te[0].Compound}
				return &constModel{}, nil
			}), nil
		}
		m, err := NewOrchestrator(factory).Train(context.Background(), split, tinyJob())
		require.NoError(t, err)
		assert.NotNil(t, m)
		assert.Equal(t, [3]string{"CCO", "CCN", "CCC"}, got)
	})

	tests := []struct {
		name    string
		factory dti.Factory
	}{
		{"configure error", func(dti.JobConfig) (dti.Trainable, error) { return nil, errors.New("bad config") }},
		{"train error", func(dti.JobConfig) (dti.Trainable, error) {
			return trainableFunc(func(context.Context, []dataset.Row, []dataset.Row, []dataset.Row) (dti.Model, error) {
				return nil, errors.New("diverged")
			}), nil
		}},
		{"train panic", func(dti.JobConfig) (dti.Trainable, error) {
			return trainableFunc(func(context.Context, []dataset.Row, []dataset.Row, []dataset.Row) (dti.Model, error) {
				panic("out of memory")
			}), nil
		}},
		{"nil model", func(dti.JobConfig) (dti.Trainable, error) {
			return trainableFunc(func(context.Context, []dataset.Row, []dataset.Row, []dataset.Row) (dti.Model, error) {
				return nil, nil
			}), nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrchestrator(tt.factory).Train(context.Background(), split, tinyJob())
			var trainErr *errors.TrainingError
			require.True(t, errors.As(err, &trainErr), "got %v", err)
			assert.Equal(t, 500, errors.HTTPStatus(err))
		})
	}
}

func TestEvaluatorEvaluate(t *testing.T) {
	dir := t.TempDir()
	test := []dataset.Row{
		{Compound: "CCO", Sequence: "MKT", Normalized: 1},
		{Compound: "CCN", Sequence: "MKT", Normalized: 2},
		{Compound: "CCC", Sequence: "MKT", Normalized: 3},
	}
	m := &constModel{value: 1}
	ev, err := NewEvaluator(dir).Evaluate(m, test)
	require.NoError(t, err)
	assert.Equal(t, 3, m.lastLen)
	assert.Equal(t, []float64{1, 2, 3}, ev.Actual)
	assert.Equal(t, []float64{1, 2, 3}, ev.Predicted)
	assert.InDelta(t, 1.0, ev.R2, 1e-12)
	assert.InDelta(t, 0.0, ev.MSE, 1e-12)
	assert.InDelta(t, 1.0, ev.Corr, 1e-12)
	assert.Equal(t, filepath.Join(dir, GraphFile), ev.Graph())

	info, err := os.Stat(ev.GraphPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = NewEvaluator(dir).Evaluate(m, nil)
	var empty *errors.EmptyTestSetError
	assert.True(t, errors.As(err, &empty))
}

func TestEvaluatorDegenerate(t *testing.T) {
	// 予測が一定でも有限の値を返す
	test := []dataset.Row{{Normalized: 1}, {Normalized: 2}}
	ev, err := NewEvaluator(t.TempDir()).Evaluate(&constModel{value: 5}, test[:1])
	require.NoError(t, err)
	assert.False(t, math.IsNaN(ev.R2))
	assert.False(t, math.IsNaN(ev.Corr))

	_, err = NewEvaluator(t.TempDir()).Evaluate(&constModel{fail: errors.New("nope")}, test)
	var inf *errors.InferenceError
	assert.True(t, errors.As(err, &inf))
}

func TestExecutorPredictBatch(t *testing.T) {
	table := readTable(t, "Smiles,seq1,id\nCCO,MKT,1\n,MKT,2\nCCN,NA,3\nCCC,MKKT,4\n")
	m := &constModel{value: 10}
	res, err := NewExecutor().PredictBatch(m, BatchRequest{Table: table})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, res.Rows)
	assert.Equal(t, []float64{10, 11}, res.Predictions)
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 2, m.lastLen)

	_, err = NewExecutor().PredictBatch(m, BatchRequest{Table: table, CompoundCol: "smiles"})
	var missing *errors.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"smiles"}, missing.Missing)

	empty := readTable(t, "Smiles,seq1\n,MKT\nCCO,\n")
	_, err = NewExecutor().PredictBatch(m, BatchRequest{Table: empty})
	var emptyErr *errors.EmptyInputError
	assert.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, 400, errors.HTTPStatus(err))
}

func TestExecutorRaggedTable(t *testing.T) {
	table := &dataset.Table{
		Columns: []string{"Smiles", "seq1"},
		Rows:    [][]string{{"CCO"}, {"CCN", "MKT"}, nil},
	}
	m := &constModel{value: 2}
	res, err := NewExecutor().PredictBatch(m, BatchRequest{Table: table})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Rows)
	assert.Equal(t, 2, res.Dropped)

	_, err = NewExecutor().PredictBatch(m, BatchRequest{Table: &dataset.Table{
		Columns: []string{"Smiles", "seq1"},
		Rows:    [][]string{{"CCO"}},
	}})
	var emptyErr *errors.EmptyInputError
	require.True(t, errors.As(err, &emptyErr), "got %v", err)
}

func TestExecutorFailures(t *testing.T) {
	table := readTable(t, "Smiles,seq1\nCCO,MKT\n")
	tests := []struct {
		name  string
		model *constModel
	}{
		{"error", &constModel{fail: errors.New("boom")}},
		{"panic", &constModel{panics: true}},
		{"no output", &constModel{short: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExecutor().PredictBatch(tt.model, BatchRequest{Table: table})
			var inf *errors.InferenceError
			require.True(t, errors.As(err, &inf), "got %v", err)
			assert.Equal(t, 500, errors.HTTPStatus(err))
		})
	}
}

func TestExecutorPredictOne(t *testing.T) {
	v, err := NewExecutor().PredictOne(&constModel{value: 3.5}, SingleRequest{Compound: "CCO", Sequence: "MKT"})
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	_, err = NewExecutor().PredictOne(&constModel{}, SingleRequest{Compound: "CCO"})
	var emptyErr *errors.EmptyInputError
	assert.True(t, errors.As(err, &emptyErr))
}

func TestPlaceholderLabels(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, placeholderLabels(3))
	assert.Empty(t, placeholderLabels(0))
}

func TestTrainerRunAndPredict(t *testing.T) {
	work := t.TempDir()
	req := TrainRequest{
		Table:       readTable(t, trainingCSV(20)),
		CompoundCol: "Smiles",
		SequenceCol: "seq1",
		LabelCol:    "IC50",
		ModelName:   "kinase",
		Config:      tinyJob(),
	}
	out, err := NewTrainer(work, nil).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(7), out.Config.Seed)
	_, err = uuid.Parse(out.JobID)
	assert.NoError(t, err)
	tr, va, te := out.Split.Sizes()
	assert.Equal(t, []int{14, 2, 4}, []int{tr, va, te})
	assert.Len(t, out.Evaluation.Actual, 4)
	assert.Equal(t, "kinase_trained_model.zip", filepath.Base(out.Archive.ArchivePath))
	assert.Contains(t, out.Archive.Files, "graph.png")
	assert.Contains(t, out.Archive.Files, "metrics.txt")
	assert.Contains(t, out.Archive.Files, dti.WeightsFile)
	assert.Contains(t, out.Archive.Files, dti.ConfigFile)

	p := NewPredictor(work)
	batch, err := p.PredictBatch(context.Background(), out.Archive.ArchivePath,
		BatchRequest{Table: readTable(t, "Smiles,seq1\nCCO,MKTAYIAK\nNA,MKT\nCCN,ACDEFGHIK\n")})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.TotalRecords)
	require.Len(t, batch.FullData, 3)
	assert.IsType(t, float64(0), batch.FullData[0][PredictedField])
	assert.Nil(t, batch.FullData[1][PredictedField])
	assert.Len(t, batch.Preview, 3)

	one, err := p.PredictOne(context.Background(), out.Archive.ArchivePath, SingleRequest{Compound: "CCO", Sequence: "MKTAYIAK"})
	require.NoError(t, err)
	require.IsType(t, float64(0), one)
	assert.InDelta(t, batch.FullData[0][PredictedField].(float64), one.(float64), 1e-9)

	require.NoError(t, out.Cleanup())
	_, err = os.Stat(out.Archive.WorkDir)
	assert.True(t, os.IsNotExist(err))
	leftovers, _ := filepath.Glob(filepath.Join(work, "pharmalnet_*"))
	assert.Empty(t, leftovers)
}

func TestPredictorUsesInspectorExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.bin"), []byte("w"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.cfg"), []byte("{}"), 0o644))

	p := NewPredictor(t.TempDir())
	p.Inspector.WeightsExt = ".bin"
	p.Inspector.ConfigExt = ".cfg"
	var gotDir, gotWeights, gotConfig string
	p.Reconstruct = func(d, weightsExt, configExt string) (dti.Model, error) {
		gotDir, gotWeights, gotConfig = d, weightsExt, configExt
		return &constModel{value: 1}, nil
	}

	v, err := p.PredictOne(context.Background(), dir, SingleRequest{Compound: "CCO", Sequence: "MKT"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, dir, gotDir)
	assert.Equal(t, ".bin", gotWeights)
	assert.Equal(t, ".cfg", gotConfig)
}

func TestTrainerRunFailures(t *testing.T) {
	work := t.TempDir()
	base := TrainRequest{
		Table:       readTable(t, trainingCSV(10)),
		CompoundCol: "Smiles",
		SequenceCol: "seq1",
		LabelCol:    "IC50",
		Config:      tinyJob(),
	}

	req := base
	req.LabelCol = "pIC50"
	_, err := NewTrainer(work, nil).Run(context.Background(), req)
	var missing *errors.MissingColumnError
	assert.True(t, errors.As(err, &missing))

	req = base
	req.Table = readTable(t, "Smiles,seq1,IC50\nCCO,MKT,-1\nCCN,MKT,0\n")
	_, err = NewTrainer(work, nil).Run(context.Background(), req)
	var empty *errors.EmptyDatasetError
	assert.True(t, errors.As(err, &empty))

	req = base
	req.Config.Fractions = dataset.Fractions{Train: 0.8, Validation: 0.1, Test: 0.2}
	_, err = NewTrainer(work, nil).Run(context.Background(), req)
	var split *errors.InvalidSplitError
	assert.True(t, errors.As(err, &split))
	assert.Equal(t, 400, errors.HTTPStatus(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewTrainer(work, nil).Run(ctx, base)
	assert.ErrorIs(t, err, context.Canceled)

	leftovers, _ := filepath.Glob(filepath.Join(work, "pharmalnet_*"))
	assert.Empty(t, leftovers)
}
