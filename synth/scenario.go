package synth

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"cema-attack/cpa"
	"cema-attack/rng"
)

// Scenario is a simulated acquisition: a secret key, the plaintexts fed to the
// device and the traces it leaked.
type Scenario struct {
	Params     cpa.Params
	Key        []byte
	Plaintexts cpa.PlaintextMatrix
	Traces     *mat.Dense
}

// NewScenario simulates p.NumPlainTexts executions under key. Plaintexts and
// noise come from separate streams derived from seed, so changing the noise
// level leaves the plaintexts unchanged.
func NewScenario(p cpa.Params, key []byte, seed uint64) (*Scenario, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(key) != p.KeyLength {
		return nil, fmt.Errorf("%w: len(key)=%d want key_length %d", cpa.ErrInvalidConfig, len(key), p.KeyLength)
	}
	root := rng.NewSource(seed)
	pts, err := cpa.GenPlainTexts(p.PlainTextLength, p.NumPlainTexts, root.Derive("plaintexts"))
	if err != nil {
		return nil, fmt.Errorf("generate plaintexts: %w", err)
	}
	traces, err := GenEMTraces(key, pts, p.TraceDuration, p.NoiseLevel, root.Derive("noise"))
	if err != nil {
		return nil, fmt.Errorf("generate traces: %w", err)
	}
	return &Scenario{
		Params:     p,
		Key:        append([]byte(nil), key...),
		Plaintexts: pts,
		Traces:     traces,
	}, nil
}

// RandomKey draws an n-byte key from src.
func RandomKey(n int, src *rng.Source) []byte {
	key := make([]byte, n)
	for i := range key {
		key[i] = src.Byte()
	}
	return key
}

// Attack runs the CPA pipeline on the scenario's plaintexts and traces.
func (s *Scenario) Attack(opts ...cpa.Option) (*cpa.Result, error) {
	return cpa.Attack(s.Plaintexts, s.Traces, s.Params.KeyLength, append(s.Params.Options(), opts...)...)
}

// Score counts the recovered bytes that match the scenario key.
func (s *Scenario) Score(r *cpa.Result) int {
	hits := 0
	for j, b := range r.Key {
		if j < len(s.Key) && s.Key[j] == b {
			hits++
		}
	}
	return hits
}
