package cpa

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Params describes one attack run: plaintext batch shape, attacked key length,
// trace window and (for simulated runs) the noise amplitude.
type Params struct {
	PlainTextLength int `json:"plaintext_length"` // bytes per plaintext
	NumPlainTexts   int `json:"num_plaintexts"`   // executions / traces
	KeyLength       int `json:"key_length"`       // attacked key bytes
	TraceDuration   int `json:"trace_duration"`   // samples per trace
	NoiseLevel      int `json:"noise_level"`      // exclusive bound of uniform noise, 1 = noiseless
	Workers         int `json:"workers"`          // 0 = GOMAXPROCS
}

// DefaultParams returns a small noiseless 4-byte setup.
func DefaultParams() Params {
	return Params{
		PlainTextLength: 4,
		NumPlainTexts:   20,
		KeyLength:       4,
		TraceDuration:   8,
		NoiseLevel:      1,
	}
}

// Validate performs basic consistency checks on the parameter set.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil params", ErrInvalidConfig)
	}
	if p.PlainTextLength <= 0 {
		return fmt.Errorf("%w: plaintext_length=%d must be >0", ErrInvalidConfig, p.PlainTextLength)
	}
	if p.NumPlainTexts <= 0 {
		return fmt.Errorf("%w: num_plaintexts=%d must be >0", ErrInvalidConfig, p.NumPlainTexts)
	}
	if p.KeyLength <= 0 {
		return fmt.Errorf("%w: key_length=%d must be >0", ErrInvalidConfig, p.KeyLength)
	}
	if p.KeyLength > p.PlainTextLength {
		return fmt.Errorf("%w: key_length (%d) exceeds plaintext_length (%d)", ErrInvalidConfig, p.KeyLength, p.PlainTextLength)
	}
	if p.TraceDuration < p.KeyLength {
		return fmt.Errorf("%w: trace_duration=%d want >= key_length %d", ErrInvalidConfig, p.TraceDuration, p.KeyLength)
	}
	if p.NoiseLevel < 1 {
		return fmt.Errorf("%w: noise_level=%d must be >=1", ErrInvalidConfig, p.NoiseLevel)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: workers=%d must be >=0", ErrInvalidConfig, p.Workers)
	}
	return nil
}

// Options returns the stage options implied by the parameter set.
func (p *Params) Options() []Option {
	return []Option{WithWorkers(p.Workers)}
}

// LoadParams decodes parameters from JSON and validates them.
func LoadParams(r io.Reader) (*Params, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var p Params
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadParamsFromFile opens the given path, decodes JSON parameters, and validates them.
func LoadParamsFromFile(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open params file: %w", err)
	}
	defer f.Close()
	return LoadParams(f)
}
