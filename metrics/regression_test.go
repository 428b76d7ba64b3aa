package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{name: "perfect prediction", yTrue: []float64{1, 2, 3, 4, 5}, yPred: []float64{1, 2, 3, 4, 5}, want: 0},
		{name: "simple case", yTrue: []float64{1, 2, 3, 4}, yPred: []float64{1.5, 2.5, 2.5, 3.5}, want: 0.25},
		{name: "larger errors", yTrue: []float64{10, 20, 30}, yPred: []float64{12, 18, 33}, want: 17.0 / 3.0},
		{name: "dimension mismatch", yTrue: []float64{1, 2, 3}, yPred: []float64{1, 2}, wantErr: true},
		{name: "empty vectors", yTrue: nil, yPred: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestMSEMatrix(t *testing.T) {
	got, err := MSEMatrix(mat.NewDense(2, 1, []float64{1, 3}), mat.NewDense(2, 1, []float64{2, 3}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)

	_, err = MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestR2Score(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	tests := []struct {
		name      string
		yTrue     []float64
		yPred     []float64
		want      float64
		wantWarns int
	}{
		{name: "perfect", yTrue: []float64{1, 2, 3}, yPred: []float64{1, 2, 3}, want: 1},
		{name: "mean predictor", yTrue: []float64{1, 2, 3}, yPred: []float64{2, 2, 2}, want: 0},
		{name: "worse than mean", yTrue: []float64{1, 2, 3}, yPred: []float64{3, 2, 1}, want: -3},
		{name: "constant truth exact", yTrue: []float64{2, 2}, yPred: []float64{2, 2}, want: 1, wantWarns: 1},
		{name: "constant truth off", yTrue: []float64{2, 2}, yPred: []float64{1, 3}, want: 0, wantWarns: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings = nil
			got, err := R2Score(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
			assert.Len(t, warnings, tt.wantWarns)
		})
	}
}

func TestPearson(t *testing.T) {
	errors.SetWarningHandler(func(error) {})

	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{name: "positive", yTrue: []float64{1, 2, 3, 4}, yPred: []float64{2, 4, 6, 8}, want: 1},
		{name: "negative", yTrue: []float64{1, 2, 3, 4}, yPred: []float64{4, 3, 2, 1}, want: -1},
		{name: "constant prediction", yTrue: []float64{1, 2, 3}, yPred: []float64{5, 5, 5}, want: 0},
		{name: "single sample", yTrue: []float64{1}, yPred: []float64{1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pearson(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestRegressionReport(t *testing.T) {
	report, err := Regression([]float64{1, 2, 3, 4}, []float64{1.1, 1.9, 3.2, 3.8})
	require.NoError(t, err)
	assert.Greater(t, report.R2, 0.9)
	assert.InDelta(t, 0.025, report.MSE, 1e-10)
	assert.Greater(t, report.Corr, 0.95)

	_, err = Regression(nil, nil)
	assert.Error(t, err)
}

func TestRMSEAndMAE(t *testing.T) {
	rmse, err := RMSE([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(12.5), rmse, 1e-12)

	mae, err := MAE([]float64{0, 0}, []float64{3, -4})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, mae, 1e-12)
}
