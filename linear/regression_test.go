package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/pkg/errors"
)

func TestLinearRegressionFitPredict(t *testing.T) {
	// y = 2*x1 - 3*x2 + 1
	X := mat.NewDense(5, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		2, 1,
		3, 4,
	})
	y := mat.NewDense(5, 1, nil)
	for i := 0; i < 5; i++ {
		y.Set(i, 0, 2*X.At(i, 0)-3*X.At(i, 1)+1)
	}

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.InDeltaSlice(t, []float64{2, -3}, lr.GetWeights(), 1e-9)
	assert.InDelta(t, 1, lr.Intercept, 1e-9)

	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{1, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 0, pred.At(0, 0), 1e-9)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-9)
}

func TestLinearRegressionErrors(t *testing.T) {
	tests := []struct {
		name string
		X    mat.Matrix
		y    mat.Matrix
	}{
		{name: "row mismatch", X: mat.NewDense(3, 1, []float64{1, 2, 3}), y: mat.NewDense(2, 1, []float64{1, 2})},
		{name: "y not column", X: mat.NewDense(3, 1, []float64{1, 2, 3}), y: mat.NewDense(3, 2, nil)},
		{name: "underdetermined", X: mat.NewDense(1, 1, []float64{1}), y: mat.NewDense(1, 1, []float64{1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewLinearRegression().Fit(tt.X, tt.y))
		})
	}

	_, err := NewLinearRegression().Predict(mat.NewDense(1, 1, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))
}

func TestFitLine(t *testing.T) {
	slope, intercept, err := FitLine([]float64{1, 2, 3, 4}, []float64{3, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, 2, slope, 1e-9)
	assert.InDelta(t, 1, intercept, 1e-9)

	_, _, err = FitLine([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
}
