package synth

import (
	"fmt"

	"github.com/golang/glog"

	"cema-attack/cpa"
	"cema-attack/rng"
)

// SweepPoint summarises the trials run with one plaintext count.
type SweepPoint struct {
	NumPlainTexts int
	Trials        int
	ByteAccuracy  float64 // fraction of key bytes recovered
	KeyRate       float64 // fraction of trials recovering the whole key
	MeanMargin    float64 // mean winning margin over all attacked bytes
}

// Sweep measures recovery accuracy as a function of the number of plaintexts
// for the noise level and key length in base. Each trial uses its own random
// key and seed derived from seed; base.NumPlainTexts is ignored.
func Sweep(base cpa.Params, counts []int, trials int, seed uint64) ([]SweepPoint, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("%w: trials=%d must be >0", cpa.ErrInvalidConfig, trials)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: no plaintext counts", cpa.ErrInvalidConfig)
	}
	keys := rng.NewSource(seed).Derive("sweep/keys")
	out := make([]SweepPoint, 0, len(counts))
	for ci, n := range counts {
		p := base
		p.NumPlainTexts = n
		if err := p.Validate(); err != nil {
			return nil, err
		}
		pt := SweepPoint{NumPlainTexts: n, Trials: trials}
		var bytesOK, keysOK int
		for trial := 0; trial < trials; trial++ {
			key := RandomKey(p.KeyLength, keys)
			sc, err := NewScenario(p, key, seed+uint64(ci*trials+trial)+1)
			if err != nil {
				return nil, err
			}
			res, err := sc.Attack()
			if err != nil {
				return nil, fmt.Errorf("count %d trial %d: %w", n, trial, err)
			}
			hits := sc.Score(res)
			bytesOK += hits
			if hits == p.KeyLength {
				keysOK++
			}
			for _, b := range res.Bytes {
				pt.MeanMargin += b.Margin
			}
		}
		total := float64(trials * p.KeyLength)
		pt.ByteAccuracy = float64(bytesOK) / total
		pt.KeyRate = float64(keysOK) / float64(trials)
		pt.MeanMargin /= total
		glog.V(1).Infof("synth: sweep n=%d noise=%d byte accuracy=%.3f key rate=%.3f",
			n, p.NoiseLevel, pt.ByteAccuracy, pt.KeyRate)
		out = append(out, pt)
	}
	return out, nil
}
