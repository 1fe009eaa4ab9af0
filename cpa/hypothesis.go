package cpa

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"cema-attack/internal/parallel"
	"cema-attack/leakage"
	"cema-attack/prof"
)

// KeyGuesses is the number of candidate values of one key byte, and the number
// of rows of every hypothesis matrix.
const KeyGuesses = 256

// GenHypoMatrix builds the 256 x N hypothesis matrix of key byte keyByteIndex:
// entry (k, i) is HW(pts[i][keyByteIndex] XOR k).
func GenHypoMatrix(pts PlaintextMatrix, keyByteIndex int, opts ...Option) (*mat.Dense, error) {
	if err := pts.Validate(); err != nil {
		return nil, err
	}
	if keyByteIndex < 0 || keyByteIndex >= pts.Width() {
		return nil, fmt.Errorf("%w: keyByteIndex=%d want [0,%d)", ErrShapeMismatch, keyByteIndex, pts.Width())
	}
	cfg := newConfig(opts)
	hs := buildHypotheses(pts, []int{keyByteIndex}, cfg.workers)
	return hs[0], nil
}

// GetHypoMatrices builds one hypothesis matrix per key byte 0..keyLengthInBytes-1,
// ordered by position.
func GetHypoMatrices(pts PlaintextMatrix, keyLengthInBytes int, opts ...Option) ([]*mat.Dense, error) {
	defer prof.Track(time.Now(), "cpa/hypotheses")

	if err := pts.Validate(); err != nil {
		return nil, err
	}
	if keyLengthInBytes <= 0 {
		return nil, fmt.Errorf("%w: keyLengthInBytes=%d must be >0", ErrInvalidConfig, keyLengthInBytes)
	}
	if keyLengthInBytes > pts.Width() {
		return nil, fmt.Errorf("%w: keyLengthInBytes (%d) exceeds plaintext width (%d)", ErrShapeMismatch, keyLengthInBytes, pts.Width())
	}
	cfg := newConfig(opts)
	positions := make([]int, keyLengthInBytes)
	for j := range positions {
		positions[j] = j
	}
	return buildHypotheses(pts, positions, cfg.workers), nil
}

// buildHypotheses fills the matrices of all requested positions at once; the
// (position, guess) rows are the unit of parallel work.
func buildHypotheses(pts PlaintextMatrix, positions []int, workers int) []*mat.Dense {
	n := pts.Len()
	cols := make([][]byte, len(positions))
	data := make([][]float64, len(positions))
	for p, j := range positions {
		cols[p] = pts.Column(j)
		data[p] = make([]float64, KeyGuesses*n)
	}

	parallel.For(len(positions)*KeyGuesses, workers, func(idx int) {
		p, k := idx/KeyGuesses, idx%KeyGuesses
		row := data[p][k*n : (k+1)*n]
		for i, pt := range cols[p] {
			row[i] = float64(leakage.Predict(pt, byte(k)))
		}
	})

	out := make([]*mat.Dense, len(positions))
	for p := range out {
		out[p] = mat.NewDense(KeyGuesses, n, data[p])
	}
	return out
}
