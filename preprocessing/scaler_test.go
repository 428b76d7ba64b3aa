package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/pkg/errors"
)

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 10, 5,
		2, 20, 5,
		3, 30, 5,
		4, 40, 5,
	})

	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2.5, 25, 5}, scaler.Mean, 1e-12)
	// 定数列のスケールは1
	assert.Equal(t, 1.0, scaler.Scale[2])

	r, c := out.Dims()
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += out.At(i, j)
		}
		assert.InDelta(t, 0, sum/float64(r), 1e-12, "column %d mean", j)
	}
	assert.InDelta(t, out.At(0, 0), out.At(0, 1), 1e-12)
	assert.Equal(t, 0.0, out.At(3, 2))

	back, err := scaler.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-9))
}

func TestStandardScalerErrors(t *testing.T) {
	scaler := NewStandardScalerDefault()

	_, err := scaler.Transform(mat.NewDense(1, 2, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	require.NoError(t, scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = scaler.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = NewStandardScalerDefault().Fit(&mat.Dense{})
	assert.Error(t, err)
}

func TestStandardScalerWithoutMean(t *testing.T) {
	scaler := NewStandardScaler(false, true)
	out, err := scaler.FitTransform(mat.NewDense(2, 1, []float64{1, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, scaler.Mean)
	assert.InDelta(t, 1.0, out.At(0, 0), 1e-12)
	assert.InDelta(t, 3.0, out.At(1, 0), 1e-12)
	assert.Contains(t, scaler.String(), "n_features=1")
}
