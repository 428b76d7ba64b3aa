// Package neural_network provides a multi-layer perceptron regressor trained with Adam.
package neural_network

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pharmalnet/dti/core/model"
	"github.com/pharmalnet/dti/metrics"
	"github.com/pharmalnet/dti/pkg/errors"
)

// EpochStats records one pass over the training partition.
type EpochStats struct {
	Epoch         int     `json:"epoch"`
	TrainLoss     float64 `json:"train_loss"`
	ValidationMSE float64 `json:"validation_mse"`
}

// MLPRegressor は ReLU 隠れ層と線形出力を持つ多層パーセプトロン回帰モデル
//
// Weights are He-initialised from Seed; mini-batches are reshuffled every epoch from the
// same generator, so a fit is reproducible for a given seed and input. After the last
// epoch the weights of the epoch with the lowest validation MSE (training loss when no
// validation data is given) are restored.
type MLPRegressor struct {
	State *model.StateManager

	HiddenDims   []int
	LearningRate float64
	BatchSize    int
	Epochs       int
	Seed         int64
	Alpha        float64 // L2 penalty
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	MaxGradNorm  float64 // 0 disables clipping

	Weights []*mat.Dense    // layer l: in × out
	Biases  []*mat.VecDense // layer l: out

	History   []EpochStats
	BestEpoch int

	// OnEpoch is called after every epoch. It is not persisted.
	OnEpoch func(EpochStats)
}

// Option configures an MLPRegressor.
type Option func(*MLPRegressor)

// WithHiddenDims sets the hidden layer widths.
func WithHiddenDims(dims ...int) Option {
	return func(m *MLPRegressor) { m.HiddenDims = append([]int(nil), dims...) }
}

// WithLearningRate sets the Adam step size.
func WithLearningRate(lr float64) Option {
	return func(m *MLPRegressor) { m.LearningRate = lr }
}

// WithBatchSize sets the mini-batch size.
func WithBatchSize(n int) Option {
	return func(m *MLPRegressor) { m.BatchSize = n }
}

// WithEpochs sets the number of passes over the training data.
func WithEpochs(n int) Option {
	return func(m *MLPRegressor) { m.Epochs = n }
}

// WithSeed sets the seed for initialisation and shuffling.
func WithSeed(seed int64) Option {
	return func(m *MLPRegressor) { m.Seed = seed }
}

// WithAlpha sets the L2 penalty.
func WithAlpha(alpha float64) Option {
	return func(m *MLPRegressor) { m.Alpha = alpha }
}

// WithEpochCallback installs a per-epoch callback.
func WithEpochCallback(fn func(EpochStats)) Option {
	return func(m *MLPRegressor) { m.OnEpoch = fn }
}

var (
	_ model.Regressor   = (*MLPRegressor)(nil)
	_ model.Persistable = (*MLPRegressor)(nil)
)

// NewMLPRegressor returns a regressor with hidden layers [512, 256], learning rate 5e-4,
// batch size 32 and 10 epochs unless overridden.
func NewMLPRegressor(opts ...Option) *MLPRegressor {
	m := &MLPRegressor{
		State:        model.NewStateManager(),
		HiddenDims:   []int{512, 256},
		LearningRate: 5e-4,
		BatchSize:    32,
		Epochs:       10,
		Seed:         1,
		Alpha:        1e-4,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		MaxGradNorm:  10,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsFitted reports whether Fit has completed.
func (m *MLPRegressor) IsFitted() bool {
	return m.State != nil && m.State.IsFitted()
}

func (m *MLPRegressor) validateParams() error {
	if len(m.HiddenDims) == 0 {
		return errors.NewValidationError("hidden_dims", "at least one hidden layer is required", m.HiddenDims)
	}
	for _, d := range m.HiddenDims {
		if d <= 0 {
			return errors.NewValidationError("hidden_dims", "layer widths must be positive", m.HiddenDims)
		}
	}
	if !(m.LearningRate > 0) {
		return errors.NewValidationError("learning_rate", "must be positive", m.LearningRate)
	}
	if m.BatchSize <= 0 {
		return errors.NewValidationError("batch_size", "must be positive", m.BatchSize)
	}
	if m.Epochs <= 0 {
		return errors.NewValidationError("epochs", "must be positive", m.Epochs)
	}
	return nil
}

// Fit trains on X and y without a validation set.
func (m *MLPRegressor) Fit(X, y mat.Matrix) error {
	return m.FitContext(context.Background(), X, y, nil, nil)
}

// FitContext trains on X and y, scoring Xval/yval after every epoch when given.
// ctx is checked between epochs.
func (m *MLPRegressor) FitContext(ctx context.Context, X, y, Xval, yval mat.Matrix) error {
	if err := m.validateParams(); err != nil {
		return err
	}
	n, d := X.Dims()
	ry, cy := y.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError("MLPRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("MLPRegressor.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("MLPRegressor.Fit", "y must be a column vector")
	}
	hasVal := Xval != nil && yval != nil
	if hasVal {
		nv, dv := Xval.Dims()
		if nv == 0 {
			hasVal = false
		} else if dv != d {
			return errors.NewDimensionError("MLPRegressor.Fit", d, dv, 1)
		}
	}
	if m.State == nil {
		m.State = model.NewStateManager()
	}
	m.State.Reset()

	rng := rand.New(rand.NewPCG(uint64(m.Seed), uint64(m.Seed)^0x9e3779b97f4a7c15))
	m.initWeights(d, rng)
	opt := newAdam(m.Weights, m.Biases, m.Beta1, m.Beta2, m.Epsilon)

	yData := mat.Col(nil, 0, y)
	m.History = m.History[:0]
	m.BestEpoch = 0
	best := math.Inf(1)
	var bestW []*mat.Dense
	var bestB []*mat.VecDense

	// 学習中はモデルを学習済みとして扱い、内部の Predict を使えるようにする
	m.State.SetDimensions(d, n)
	m.State.SetFitted()

	for epoch := 1; epoch <= m.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			m.State.Reset()
			return errors.Wrapf(err, "MLPRegressor.Fit: stopped before epoch %d", epoch)
		}

		perm := rng.Perm(n)
		var lossSum float64
		for start := 0; start < n; start += m.BatchSize {
			end := min(start+m.BatchSize, n)
			idx := perm[start:end]
			Xb := mat.NewDense(len(idx), d, nil)
			yb := make([]float64, len(idx))
			for i, p := range idx {
				for j := 0; j < d; j++ {
					Xb.Set(i, j, X.At(p, j))
				}
				yb[i] = yData[p]
			}
			loss, gW, gB := m.backward(Xb, yb)
			lossSum += loss * float64(len(idx))
			if m.MaxGradNorm > 0 {
				for l := range gW {
					errors.ClipNorm(gW[l].RawMatrix().Data, m.MaxGradNorm)
					errors.ClipNorm(gB[l].RawVector().Data, m.MaxGradNorm)
				}
			}
			opt.step(m.LearningRate, gW, gB)
		}

		stats := EpochStats{Epoch: epoch, TrainLoss: lossSum / float64(n)}
		if err := errors.CheckScalar("MLPRegressor.Fit", stats.TrainLoss, epoch); err != nil {
			m.State.Reset()
			return err
		}
		score := stats.TrainLoss
		if hasVal {
			pred, err := m.Predict(Xval)
			if err != nil {
				m.State.Reset()
				return err
			}
			stats.ValidationMSE, err = metrics.MSEMatrix(yval, pred)
			if err != nil {
				m.State.Reset()
				return err
			}
			if err := errors.CheckScalar("MLPRegressor.Validate", stats.ValidationMSE, epoch); err != nil {
				m.State.Reset()
				return err
			}
			score = stats.ValidationMSE
		}
		m.History = append(m.History, stats)
		if m.OnEpoch != nil {
			m.OnEpoch(stats)
		}

		if score < best {
			best = score
			m.BestEpoch = epoch
			bestW, bestB = cloneParams(m.Weights, m.Biases)
		}
	}

	m.Weights, m.Biases = bestW, bestB
	if m.BestEpoch == m.Epochs && m.Epochs > 1 {
		errors.Warn(errors.NewConvergenceWarning("MLPRegressor", m.Epochs,
			fmt.Sprintf("best epoch was the last one (score %.6g); more epochs may improve the model", best)))
	}
	return nil
}

func (m *MLPRegressor) initWeights(nIn int, rng *rand.Rand) {
	dims := append(append([]int{nIn}, m.HiddenDims...), 1)
	m.Weights = make([]*mat.Dense, len(dims)-1)
	m.Biases = make([]*mat.VecDense, len(dims)-1)
	for l := 0; l < len(dims)-1; l++ {
		in, out := dims[l], dims[l+1]
		dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2.0 / float64(in)), Src: rng}
		data := make([]float64, in*out)
		for i := range data {
			data[i] = dist.Rand()
		}
		m.Weights[l] = mat.NewDense(in, out, data)
		m.Biases[l] = mat.NewVecDense(out, nil)
	}
}

// forward returns the activations of every layer; the last one is the n×1 output.
func (m *MLPRegressor) forward(X mat.Matrix) []*mat.Dense {
	n, _ := X.Dims()
	acts := make([]*mat.Dense, len(m.Weights))
	in := X
	for l, W := range m.Weights {
		_, out := W.Dims()
		z := mat.NewDense(n, out, nil)
		z.Mul(in, W)
		b := m.Biases[l].RawVector().Data
		hidden := l < len(m.Weights)-1
		for i := 0; i < n; i++ {
			row := z.RawRowView(i)
			for j := range row {
				row[j] += b[j]
				if hidden && row[j] < 0 {
					row[j] = 0
				}
			}
		}
		acts[l] = z
		in = z
	}
	return acts
}

// backward returns the batch MSE and the gradients of 0.5·MSE + 0.5·alpha/b·‖W‖².
func (m *MLPRegressor) backward(Xb *mat.Dense, yb []float64) (float64, []*mat.Dense, []*mat.VecDense) {
	b := len(yb)
	acts := m.forward(Xb)
	out := acts[len(acts)-1]

	delta := mat.NewDense(b, 1, nil)
	var loss float64
	for i := 0; i < b; i++ {
		diff := out.At(i, 0) - yb[i]
		loss += diff * diff
		delta.Set(i, 0, diff/float64(b))
	}
	loss /= float64(b)

	L := len(m.Weights)
	gW := make([]*mat.Dense, L)
	gB := make([]*mat.VecDense, L)
	for l := L - 1; l >= 0; l-- {
		var prev mat.Matrix = Xb
		if l > 0 {
			prev = acts[l-1]
		}
		in, outDim := m.Weights[l].Dims()
		gW[l] = mat.NewDense(in, outDim, nil)
		gW[l].Mul(prev.T(), delta)
		if m.Alpha > 0 {
			var reg mat.Dense
			reg.Scale(m.Alpha/float64(b), m.Weights[l])
			gW[l].Add(gW[l], &reg)
		}
		gB[l] = mat.NewVecDense(outDim, nil)
		for j := 0; j < outDim; j++ {
			var s float64
			for i := 0; i < b; i++ {
				s += delta.At(i, j)
			}
			gB[l].SetVec(j, s)
		}
		if l == 0 {
			break
		}
		next := mat.NewDense(b, in, nil)
		next.Mul(delta, m.Weights[l].T())
		a := acts[l-1]
		for i := 0; i < b; i++ {
			row := next.RawRowView(i)
			act := a.RawRowView(i)
			for j := range row {
				if act[j] <= 0 {
					row[j] = 0
				}
			}
		}
		delta = next
	}
	return loss, gW, gB
}

// Predict は入力データに対する予測を行う (n×1)
func (m *MLPRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MLPRegressor", "Predict")
	}
	n, d := X.Dims()
	if n == 0 {
		return nil, errors.NewModelError("MLPRegressor.Predict", "empty data", errors.ErrEmptyData)
	}
	if err := m.State.RequireFeatures("MLPRegressor.Predict", d); err != nil {
		return nil, err
	}
	acts := m.forward(X)
	return acts[len(acts)-1], nil
}

// Score はモデルの決定係数（R²）を計算する
func (m *MLPRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(mat.Col(nil, 0, y), mat.Col(nil, 0, pred))
}

// SaveTo gob-encodes the fitted network.
func (m *MLPRegressor) SaveTo(w io.Writer) error {
	if !m.IsFitted() {
		return errors.NewNotFittedError("MLPRegressor", "SaveTo")
	}
	return model.SaveModelToWriter(m, w)
}

// LoadFrom replaces m with a network written by SaveTo.
func (m *MLPRegressor) LoadFrom(r io.Reader) error {
	var loaded MLPRegressor
	if err := model.LoadModelFromReader(&loaded, r); err != nil {
		return err
	}
	if loaded.State == nil || !loaded.State.IsFitted() || len(loaded.Weights) == 0 || len(loaded.Weights) != len(loaded.Biases) {
		return errors.NewModelError("MLPRegressor.LoadFrom", "incomplete network", nil)
	}
	onEpoch := m.OnEpoch
	*m = loaded
	m.OnEpoch = onEpoch
	return nil
}

func cloneParams(ws []*mat.Dense, bs []*mat.VecDense) ([]*mat.Dense, []*mat.VecDense) {
	cw := make([]*mat.Dense, len(ws))
	cb := make([]*mat.VecDense, len(bs))
	for i := range ws {
		cw[i] = mat.DenseCopyOf(ws[i])
		cb[i] = mat.VecDenseCopyOf(bs[i])
	}
	return cw, cb
}
