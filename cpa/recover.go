package cpa

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"cema-attack/internal/parallel"
	"cema-attack/prof"
)

// ByteResult describes how one key byte was selected.
type ByteResult struct {
	Index       int     // key byte position
	KeyByte     byte    // winning guess (row of the correlation matrix)
	TimeIndex   int     // winning trace sample (column)
	Correlation float64 // correlation at (KeyByte, TimeIndex)
	// Margin is Correlation minus the best correlation reached by any other
	// guess at any time index.
	Margin float64
}

// Result is the output of a key recovery.
type Result struct {
	Key   []byte
	Bytes []ByteResult
}

// String returns the recovered key in hex.
func (r *Result) String() string {
	return hex.EncodeToString(r.Key)
}

// RecoverKey attacks key bytes 0..keyLengthInBytes-1 independently. For byte j
// the correlation matrix of hyps[j] against traces is scanned in row-major
// order and the first maximum wins: the smallest guess, then the smallest time
// index, among equal values. The signed maximum is used, not the absolute one.
func RecoverKey(hyps []*mat.Dense, traces mat.Matrix, keyLengthInBytes int, opts ...Option) (*Result, error) {
	defer prof.Track(time.Now(), "cpa/recover")

	if keyLengthInBytes <= 0 {
		return nil, fmt.Errorf("%w: keyLengthInBytes=%d must be >0", ErrInvalidConfig, keyLengthInBytes)
	}
	if len(hyps) < keyLengthInBytes {
		return nil, fmt.Errorf("%w: %d hypothesis matrices for %d key bytes", ErrShapeMismatch, len(hyps), keyLengthInBytes)
	}
	if traces == nil {
		return nil, fmt.Errorf("%w: nil trace matrix", ErrShapeMismatch)
	}
	_, tc := traces.Dims()
	for j := 0; j < keyLengthInBytes; j++ {
		if hyps[j] == nil {
			return nil, fmt.Errorf("%w: hypothesis matrix %d is nil", ErrShapeMismatch, j)
		}
		r, c := hyps[j].Dims()
		if r != KeyGuesses {
			return nil, fmt.Errorf("%w: hypothesis matrix %d rows=%d want %d", ErrShapeMismatch, j, r, KeyGuesses)
		}
		if c != tc {
			return nil, fmt.Errorf("%w: hypothesis matrix %d columns=%d trace columns=%d", ErrShapeMismatch, j, c, tc)
		}
	}

	cfg := newConfig(opts)
	outer := cfg.workers
	if outer > keyLengthInBytes {
		outer = keyLengthInBytes
	}
	inner := cfg.workers / outer
	if inner < 1 {
		inner = 1
	}

	results := make([]ByteResult, keyLengthInBytes)
	err := parallel.ForErr(keyLengthInBytes, outer, func(j int) error {
		start := time.Now()
		c, err := BuildCorrelationMatrix(hyps[j], traces, WithWorkers(inner))
		if err != nil {
			return fmt.Errorf("key byte %d: %w", j, err)
		}
		results[j] = selectByte(j, c)
		if prof.Enabled() {
			prof.Track(start, fmt.Sprintf("cpa/correlate/byte%02d", j))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Key: make([]byte, keyLengthInBytes), Bytes: results}
	for j, b := range results {
		res.Key[j] = b.KeyByte
		glog.V(1).Infof("cpa: key byte %d = 0x%02x at t=%d (r=%.4f, margin=%.4f)",
			j, b.KeyByte, b.TimeIndex, b.Correlation, b.Margin)
	}
	return res, nil
}

// Attack builds the hypothesis matrices of pts and recovers keyLengthInBytes
// key bytes from traces.
func Attack(pts PlaintextMatrix, traces mat.Matrix, keyLengthInBytes int, opts ...Option) (*Result, error) {
	hyps, err := GetHypoMatrices(pts, keyLengthInBytes, opts...)
	if err != nil {
		return nil, err
	}
	return RecoverKey(hyps, traces, keyLengthInBytes, opts...)
}

func selectByte(index int, c *mat.Dense) ByteResult {
	raw := c.RawMatrix()
	if raw.Stride != raw.Cols {
		raw = mat.DenseCopyOf(c).RawMatrix()
	}
	at := floats.MaxIdx(raw.Data[:raw.Rows*raw.Cols])
	k, t := at/raw.Cols, at%raw.Cols
	best := raw.Data[at]

	runnerUp := math.Inf(-1)
	for r := 0; r < raw.Rows; r++ {
		if r == k {
			continue
		}
		if m := floats.Max(raw.Data[r*raw.Cols : (r+1)*raw.Cols]); m > runnerUp {
			runnerUp = m
		}
	}
	margin := 0.0
	if !math.IsInf(runnerUp, -1) {
		margin = best - runnerUp
	}
	return ByteResult{
		Index:       index,
		KeyByte:     byte(k),
		TimeIndex:   t,
		Correlation: best,
		Margin:      margin,
	}
}
