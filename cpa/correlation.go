package cpa

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"cema-attack/internal/parallel"
)

// Correlation returns the Pearson coefficient of x and y. A constant input
// yields ZeroVarianceCorrelation.
func Correlation(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: len(x)=%d len(y)=%d", ErrShapeMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return 0, fmt.Errorf("%w: empty samples", ErrShapeMismatch)
	}
	if isConstant(x) || isConstant(y) {
		return ZeroVarianceCorrelation, nil
	}
	return clampUnit(stat.Correlation(x, y, nil)), nil
}

// BuildCorrelationMatrix correlates every row of hypo (K x N) with every row of
// traces (T x N) and returns the K x T matrix of Pearson coefficients. Pairs
// involving a constant row hold ZeroVarianceCorrelation.
func BuildCorrelationMatrix(hypo, traces mat.Matrix, opts ...Option) (*mat.Dense, error) {
	hr, hc := hypo.Dims()
	tr, tc := traces.Dims()
	if hc != tc {
		return nil, fmt.Errorf("%w: hypothesis columns=%d trace columns=%d", ErrShapeMismatch, hc, tc)
	}
	if hr == 0 || tr == 0 || hc == 0 {
		return nil, fmt.Errorf("%w: empty matrix (%dx%d vs %dx%d)", ErrShapeMismatch, hr, hc, tr, tc)
	}
	cfg := newConfig(opts)
	return correlate(centerRows(hypo, cfg.workers), centerRows(traces, cfg.workers), cfg.workers), nil
}

// centered holds mean-free copies of matrix rows and their Euclidean norms.
// A zero norm marks a constant row.
type centered struct {
	rows  [][]float64
	norms []float64
}

func centerRows(m mat.Matrix, workers int) *centered {
	r, _ := m.Dims()
	c := &centered{
		rows:  make([][]float64, r),
		norms: make([]float64, r),
	}
	parallel.For(r, workers, func(i int) {
		row := mat.Row(nil, i, m)
		c.rows[i] = row
		if isConstant(row) {
			return
		}
		floats.AddConst(-stat.Mean(row, nil), row)
		c.norms[i] = floats.Norm(row, 2)
	})
	return c
}

func correlate(h, t *centered, workers int) *mat.Dense {
	rows, cols := len(h.rows), len(t.rows)
	data := make([]float64, rows*cols)
	parallel.For(rows, workers, func(k int) {
		out := data[k*cols : (k+1)*cols]
		hn := h.norms[k]
		for j := range out {
			tn := t.norms[j]
			if hn == 0 || tn == 0 {
				out[j] = ZeroVarianceCorrelation
				continue
			}
			out[j] = clampUnit(floats.Dot(h.rows[k], t.rows[j]) / (hn * tn))
		}
	})
	return mat.NewDense(rows, cols, data)
}

func isConstant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

// clampUnit folds rounding overshoot back into [-1,1]; NaN maps to the
// zero-variance value.
func clampUnit(r float64) float64 {
	switch {
	case math.IsNaN(r):
		return ZeroVarianceCorrelation
	case r > 1:
		return 1
	case r < -1:
		return -1
	}
	return r
}
