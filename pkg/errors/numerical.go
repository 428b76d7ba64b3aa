package errors

import (
	"math"
)

// CheckScalar checks a single scalar value for numerical instability.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// CheckMatrix checks all values in a matrix for numerical instability.
// At most ten offending values are collected for the error message.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols, iteration int) error {
	var unstable []float64
	for i := 0; i < rows && len(unstable) < 10; i++ {
		for j := 0; j < cols && len(unstable) < 10; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				unstable = append(unstable, v)
			}
		}
	}
	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable, iteration)
	}
	return nil
}

// ClipNorm scales values in place so that their L2 norm does not exceed maxNorm.
// It returns the norm before clipping.
func ClipNorm(values []float64, maxNorm float64) float64 {
	var norm float64
	for _, g := range values {
		norm += g * g
	}
	norm = math.Sqrt(norm)
	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / norm
		for i := range values {
			values[i] *= scale
		}
	}
	return norm
}
