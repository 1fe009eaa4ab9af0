package cpa

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FromRows builds a dense matrix from plain nested rows.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrShapeMismatch)
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d len=%d want %d", ErrShapeMismatch, i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}

// FromIntRows is FromRows for integer samples.
func FromIntRows(rows [][]int) (*mat.Dense, error) {
	fr := make([][]float64, len(rows))
	for i, row := range rows {
		fr[i] = make([]float64, len(row))
		for j, v := range row {
			fr[i][j] = float64(v)
		}
	}
	return FromRows(fr)
}

// Rows copies m into plain nested rows.
func Rows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
