// Package synth generates leakage traces for a known key so the attack can be
// validated without acquisition hardware.
package synth

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"cema-attack/cpa"
	"cema-attack/leakage"
	"cema-attack/prof"
	"cema-attack/rng"
)

// GenEMTraces returns a traceDuration x N trace matrix. Every sample starts as
// uniform integer noise in [0,noiseLevel), drawn row by row from src; sample
// (j, i) for j < len(realKey) additionally carries HW(pts[i][j] XOR realKey[j]).
// noiseLevel 1 gives noiseless traces. A nil src is replaced by an
// entropy-seeded one.
func GenEMTraces(realKey []byte, pts cpa.PlaintextMatrix, traceDuration, noiseLevel int, src *rng.Source) (*mat.Dense, error) {
	defer prof.Track(time.Now(), "synth/traces")

	if err := pts.Validate(); err != nil {
		return nil, err
	}
	if len(realKey) == 0 {
		return nil, fmt.Errorf("%w: empty key", cpa.ErrInvalidConfig)
	}
	if len(realKey) > pts.Width() {
		return nil, fmt.Errorf("%w: key length (%d) exceeds plaintext width (%d)", cpa.ErrShapeMismatch, len(realKey), pts.Width())
	}
	if traceDuration < len(realKey) {
		return nil, fmt.Errorf("%w: traceDuration=%d want >= key length %d", cpa.ErrInvalidConfig, traceDuration, len(realKey))
	}
	if noiseLevel < 1 {
		return nil, fmt.Errorf("%w: noiseLevel=%d must be >=1", cpa.ErrInvalidConfig, noiseLevel)
	}
	if src == nil {
		var err error
		if src, err = rng.NewEntropySource(); err != nil {
			return nil, err
		}
	}

	n := pts.Len()
	data := make([]float64, traceDuration*n)
	for idx := range data {
		data[idx] = float64(src.IntN(noiseLevel))
	}
	for i, pt := range pts {
		for j, k := range realKey {
			data[j*n+i] += float64(leakage.Predict(pt[j], k))
		}
	}
	return mat.NewDense(traceDuration, n, data), nil
}
