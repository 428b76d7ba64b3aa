// Package metrics implements the regression scores reported for a trained model.
//
// Every function returns a finite value for non-empty, equal-length input. Cases where a
// score is mathematically undefined (zero variance) return a substitute and emit an
// UndefinedMetricWarning instead of NaN.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pharmalnet/dti/pkg/errors"
)

// Report bundles the three scores reported for a regression model.
type Report struct {
	R2   float64 `json:"R2"`
	MSE  float64 `json:"MSE"`
	Corr float64 `json:"Corr"`
}

// Regression computes R2, MSE and Pearson correlation in one pass over the inputs.
func Regression(yTrue, yPred []float64) (Report, error) {
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	corr, err := Pearson(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	return Report{R2: r2, MSE: mse, Corr: corr}, nil
}

func checkPair(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// MSEMatrix は列ベクトル (n×1) の行列に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, errors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}
	return MSE(mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred))
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue に分散がない場合、予測が完全なら 1、そうでなければ 0 を返す。
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	yMean := stat.Mean(yTrue, nil)
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("R2", "zero variance in yTrue", result))
		return result, nil
	}
	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// Pearson returns the Pearson correlation coefficient between yTrue and yPred.
// A constant input has no defined correlation; 0 is returned in that case.
func Pearson(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("Pearson", yTrue, yPred); err != nil {
		return 0, err
	}
	if len(yTrue) < 2 || stat.Variance(yTrue, nil) == 0 || stat.Variance(yPred, nil) == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("Corr", "constant input", 0))
		return 0, nil
	}
	corr := stat.Correlation(yTrue, yPred, nil)
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		errors.Warn(errors.NewUndefinedMetricWarning("Corr", "non-finite correlation", 0))
		return 0, nil
	}
	return corr, nil
}
