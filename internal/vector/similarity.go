// Package vector provides similarity kernels for normalized vectors.
package vector

import "fmt"

// MatVec computes out[i] = dot(matrix[i*dim:(i+1)*dim], query) for every row of a
// contiguous row-major matrix. Rows are accumulated in float64 in index order, so
// the same inputs always produce bit-identical scores.
// out must have len(matrix)/dim elements.
func MatVec(matrix []float32, dim int, query []float32, out []float64) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if len(query) != dim {
		return fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), dim)
	}
	if len(matrix)%dim != 0 {
		return fmt.Errorf("matrix length %d is not a multiple of dimension %d", len(matrix), dim)
	}
	rows := len(matrix) / dim
	if len(out) != rows {
		return fmt.Errorf("output length mismatch: got %d, expected %d", len(out), rows)
	}
	for i := 0; i < rows; i++ {
		row := matrix[i*dim : (i+1)*dim]
		var dot float64
		for j, q := range query {
			dot += float64(row[j]) * float64(q)
		}
		out[i] = dot
	}
	return nil
}
