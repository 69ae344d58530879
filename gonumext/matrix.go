// Package gonumext holds small gonum matrix helpers shared across the
// module.
package gonumext

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Eye returns the n by n identity matrix.
func Eye(n int) *mat.DiagDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDiagDense(n, data)
}

// HasNaNOrInf checks if there are any NaN or Inf entries in matrix.
func HasNaNOrInf(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if v := matrix.At(row, col); math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}
