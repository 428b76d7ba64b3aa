// Package linear provides ordinary least squares regression. It is used to draw the
// best-fit line of the actual-versus-predicted diagnostic plot.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/core/model"
	"github.com/pharmalnet/dti/core/parallel"
	"github.com/pharmalnet/dti/metrics"
	"github.com/pharmalnet/dti/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	State     *model.StateManager
	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
}

var _ model.Regressor = (*LinearRegression)(nil)

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{State: model.NewStateManager()}
}

// IsFitted reports whether Fit has completed.
func (lr *LinearRegression) IsFitted() bool {
	return lr.State != nil && lr.State.IsFitted()
}

// Fit はモデルを訓練データで学習させる
// 切片列を加えた計画行列 [1, X] について最小二乗問題を QR 分解で解く
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if r < c+1 {
		return errors.NewModelError("LinearRegression.Fit", "underdetermined system", errors.ErrSingularMatrix)
	}
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}

	design := mat.NewDense(r, c+1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			design.Set(i, 0, 1.0) // 切片項
			for j := 0; j < c; j++ {
				design.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var qr mat.QR
	qr.Factorize(design)
	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, y); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", &coef, c+1, 1, 0); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", err)
	}

	lr.Intercept = coef.At(0, 0)
	lr.Weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, coef.At(j+1, 0))
	}

	lr.State.SetDimensions(c, r)
	lr.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	r, c := X.Dims()
	if err := lr.State.RequireFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	// y = X * weights + intercept
	var pred mat.VecDense
	pred.MulVec(X, lr.Weights)
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, pred.AtVec(i)+lr.Intercept)
	}
	return out, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(mat.Col(nil, 0, y), mat.Col(nil, 0, yPred))
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.Weights)
}

// FitLine fits y = slope*x + intercept, the degree-one polynomial through the points.
func FitLine(x, y []float64) (slope, intercept float64, err error) {
	if len(x) != len(y) {
		return 0, 0, errors.NewDimensionError("FitLine", len(x), len(y), 0)
	}
	if len(x) < 2 {
		return 0, 0, errors.NewValueError("FitLine", "at least two points are required")
	}
	lr := NewLinearRegression()
	if err := lr.Fit(mat.NewDense(len(x), 1, x), mat.NewDense(len(y), 1, y)); err != nil {
		return 0, 0, err
	}
	return lr.Weights.AtVec(0), lr.Intercept, nil
}
