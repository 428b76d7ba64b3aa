package dti

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/core/model"
	"github.com/pharmalnet/dti/dataset"
	"github.com/pharmalnet/dti/featurize"
	"github.com/pharmalnet/dti/metrics"
	"github.com/pharmalnet/dti/pkg/errors"
	"github.com/pharmalnet/dti/pkg/log"
	"github.com/pharmalnet/dti/preprocessing"
	"github.com/pharmalnet/dti/sklearn/neural_network"
)

// HistoryFile is the per-epoch history in CSV form, written next to ResultFile.
const HistoryFile = "history.csv"

const modelType = "MLPRegressor"

// weightsBundle is the gob payload of WeightsFile.
type weightsBundle struct {
	Scaler *preprocessing.StandardScaler
	Net    *neural_network.MLPRegressor
}

// NewMLPFactory returns the Factory of the MLP-backed model.
func NewMLPFactory() Factory {
	return Configure
}

// Configure validates cfg and resolves its encoders.
func Configure(cfg JobConfig) (Trainable, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pair, err := featurize.NewPair(cfg.DrugEncoding, cfg.TargetEncoding)
	if err != nil {
		return nil, err
	}
	return &mlpTrainable{cfg: cfg, pair: pair}, nil
}

type mlpTrainable struct {
	cfg  JobConfig
	pair *featurize.Pair
}

func columns(rows []dataset.Row) (compounds, sequences []string, labels []float64) {
	compounds = make([]string, len(rows))
	sequences = make([]string, len(rows))
	labels = make([]float64, len(rows))
	for i, r := range rows {
		compounds[i], sequences[i], labels[i] = r.Compound, r.Sequence, r.Normalized
	}
	return compounds, sequences, labels
}

func (t *mlpTrainable) encode(rows []dataset.Row) (*mat.Dense, *mat.Dense, error) {
	c, s, y := columns(rows)
	X, err := t.pair.Encode(c, s)
	if err != nil {
		return nil, nil, err
	}
	return X, mat.NewDense(len(y), 1, y), nil
}

func (t *mlpTrainable) Train(ctx context.Context, train, validation, test []dataset.Row) (Model, error) {
	if len(train) == 0 {
		return nil, errors.NewValueError("Train", "training partition is empty")
	}
	logger := log.GetLoggerWithName("dti").With(
		log.ModelNameKey, modelType,
		log.RandomSeedKey, t.cfg.Seed,
	)
	start := time.Now()

	X, y, err := t.encode(train)
	if err != nil {
		return nil, err
	}
	scaler := preprocessing.NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}

	var Xv, yv mat.Matrix
	if len(validation) > 0 {
		vx, vy, err := t.encode(validation)
		if err != nil {
			return nil, err
		}
		if Xv, err = scaler.Transform(vx); err != nil {
			return nil, err
		}
		yv = vy
	}

	_, nFeatures := X.Dims()
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(train),
		log.FeaturesKey, nFeatures,
		log.HiddenDimsKey, t.cfg.HiddenDims,
		log.EpochsKey, t.cfg.Epochs,
	)

	net := neural_network.NewMLPRegressor(
		neural_network.WithHiddenDims(t.cfg.HiddenDims...),
		neural_network.WithLearningRate(t.cfg.LearningRate),
		neural_network.WithBatchSize(t.cfg.BatchSize),
		neural_network.WithEpochs(t.cfg.Epochs),
		neural_network.WithSeed(t.cfg.Seed),
		neural_network.WithEpochCallback(func(s neural_network.EpochStats) {
			logger.Debug("Epoch finished",
				log.EpochKey, s.Epoch,
				log.LossKey, s.TrainLoss,
				log.MSEKey, s.ValidationMSE,
			)
		}),
	)
	if err := net.FitContext(ctx, Xs, y, Xv, yv); err != nil {
		return nil, err
	}

	m := &MLPModel{
		Config: t.cfg,
		scaler: scaler,
		net:    net,
		pair:   t.pair,
		result: TrainingResult{
			Seed:           t.cfg.Seed,
			TrainSize:      len(train),
			ValidationSize: len(validation),
			TestSize:       len(test),
			BestEpoch:      net.BestEpoch,
		},
	}
	for _, s := range net.History {
		m.result.History = append(m.result.History, EpochEntry(s))
	}

	if len(test) > 0 {
		c, s, y := columns(test)
		pred, err := m.Predict(c, s, make([]float64, len(c)))
		if err != nil {
			return nil, err
		}
		mse, err := metrics.MSE(y, pred)
		if err != nil {
			return nil, err
		}
		m.result.TestMSE = &mse
	}

	logger.Info("Training finished",
		log.EpochKey, net.BestEpoch,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}

// MLPModel is a fitted scaler plus network with the encoders it was trained with.
type MLPModel struct {
	Config JobConfig
	scaler *preprocessing.StandardScaler
	net    *neural_network.MLPRegressor
	pair   *featurize.Pair
	result TrainingResult
}

// Encodings implements Model.
func (m *MLPModel) Encodings() (string, string) {
	return m.Config.DrugEncoding, m.Config.TargetEncoding
}

// Result implements Model.
func (m *MLPModel) Result() TrainingResult { return m.result }

// Predict implements Model.
func (m *MLPModel) Predict(compounds, sequences []string, labels []float64) ([]float64, error) {
	if len(labels) != len(compounds) {
		return nil, errors.NewDimensionError("MLPModel.Predict", len(compounds), len(labels), 0)
	}
	X, err := m.pair.Encode(compounds, sequences)
	if err != nil {
		return nil, err
	}
	Xs, err := m.scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	pred, err := m.net.Predict(Xs)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// Save implements Model.
func (m *MLPModel) Save(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewModelError("MLPModel.Save", "create directory", err)
	}
	weightsPath := filepath.Join(dir, WeightsFile)
	if err := model.SaveModel(&weightsBundle{Scaler: m.scaler, Net: m.net}, weightsPath); err != nil {
		return nil, err
	}

	nFeatures, _ := m.net.State.GetDimensions()
	manifest, err := model.NewManifest(modelType, nFeatures, m.Config)
	if err != nil {
		return nil, err
	}
	manifest.Metadata["drug_encoding"] = m.Config.DrugEncoding
	manifest.Metadata["target_encoding"] = m.Config.TargetEncoding
	configPath := filepath.Join(dir, ConfigFile)
	if err := manifest.WriteFile(configPath); err != nil {
		return nil, err
	}

	resultPath := filepath.Join(dir, ResultFile)
	data, err := json.MarshalIndent(m.result, "", "  ")
	if err != nil {
		return nil, errors.NewModelError("MLPModel.Save", "encode result", err)
	}
	if err := os.WriteFile(resultPath, data, 0o644); err != nil {
		return nil, errors.NewModelError("MLPModel.Save", "write result", err)
	}

	historyPath := filepath.Join(dir, HistoryFile)
	f, err := os.Create(historyPath)
	if err != nil {
		return nil, errors.NewModelError("MLPModel.Save", "create history", err)
	}
	defer f.Close()
	history := m.result.History
	if err := gocsv.Marshal(&history, f); err != nil {
		return nil, errors.NewModelError("MLPModel.Save", "write history", err)
	}

	return []string{weightsPath, configPath, resultPath, historyPath}, nil
}

// Reconstruct loads a model saved by Save from dir. The canonical file names are used
// when present; otherwise the first *.json and *.gob files in dir are tried.
func Reconstruct(dir string) (Model, error) {
	return ReconstructWith(dir, filepath.Ext(WeightsFile), filepath.Ext(ConfigFile))
}

// ReconstructWith is Reconstruct for archives whose weights and config files carry
// weightsExt and configExt. The files are still gob weights and a JSON manifest.
func ReconstructWith(dir, weightsExt, configExt string) (Model, error) {
	configPath, err := pick(dir, ConfigFile, configExt, func(p string) bool {
		_, err := model.ReadManifest(p)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	manifest, err := model.ReadManifest(configPath)
	if err != nil {
		return nil, err
	}
	if manifest.ModelType != modelType {
		return nil, errors.NewModelError("Reconstruct", "unsupported model type "+manifest.ModelType, nil)
	}
	var cfg JobConfig
	if err := manifest.DecodeHyperparameters(&cfg); err != nil {
		return nil, err
	}
	pair, err := featurize.NewPair(cfg.DrugEncoding, cfg.TargetEncoding)
	if err != nil {
		return nil, err
	}

	weightsPath, err := pick(dir, WeightsFile, weightsExt, nil)
	if err != nil {
		return nil, err
	}
	var bundle weightsBundle
	if err := model.LoadModel(&bundle, weightsPath); err != nil {
		return nil, err
	}
	if bundle.Scaler == nil || bundle.Net == nil || !bundle.Net.IsFitted() || !bundle.Scaler.IsFitted() {
		return nil, errors.NewModelError("Reconstruct", "incomplete weights file", nil)
	}
	if nf, _ := bundle.Net.State.GetDimensions(); nf != pair.Dim() || nf != manifest.NFeatures {
		return nil, errors.NewInputShapeError("prediction", []int{manifest.NFeatures}, []int{pair.Dim()})
	}

	m := &MLPModel{Config: cfg, scaler: bundle.Scaler, net: bundle.Net, pair: pair}
	if data, err := os.ReadFile(filepath.Join(dir, ResultFile)); err == nil {
		_ = json.Unmarshal(data, &m.result)
	}
	return m, nil
}

// pick returns dir/name when it exists, else the first file in dir with ext accepted by ok.
func pick(dir, name, ext string, ok func(string) bool) (string, error) {
	canonical := filepath.Join(dir, name)
	if info, err := os.Stat(canonical); err == nil && !info.IsDir() {
		return canonical, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return "", errors.NewModelError("Reconstruct", "list "+ext, err)
	}
	for _, p := range matches {
		if ok == nil || ok(p) {
			return p, nil
		}
	}
	return "", errors.NewModelError("Reconstruct", "no "+ext+" file in "+dir, nil)
}
