package cpa

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultParamsValidate(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default params: %v", err)
	}
}

func TestParamsValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Params)
	}{
		{"zero plaintext length", func(p *Params) { p.PlainTextLength = 0 }},
		{"negative plaintext count", func(p *Params) { p.NumPlainTexts = -1 }},
		{"zero key length", func(p *Params) { p.KeyLength = 0 }},
		{"key wider than plaintext", func(p *Params) { p.KeyLength = p.PlainTextLength + 1 }},
		{"trace shorter than key", func(p *Params) { p.TraceDuration = p.KeyLength - 1 }},
		{"zero noise", func(p *Params) { p.NoiseLevel = 0 }},
		{"negative workers", func(p *Params) { p.Workers = -2 }},
	}
	for _, c := range cases {
		p := DefaultParams()
		c.mod(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: err=%v want ErrInvalidConfig", c.name, err)
		}
	}
	var nilParams *Params
	if err := nilParams.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil params: err=%v want ErrInvalidConfig", err)
	}
}

func TestLoadParams(t *testing.T) {
	const doc = `{"plaintext_length":16,"num_plaintexts":500,"key_length":16,"trace_duration":40,"noise_level":20,"workers":2}`
	p, err := LoadParams(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Params{PlainTextLength: 16, NumPlainTexts: 500, KeyLength: 16, TraceDuration: 40, NoiseLevel: 20, Workers: 2}
	if *p != want {
		t.Fatalf("params=%+v want %+v", *p, want)
	}

	if _, err := LoadParams(strings.NewReader(`{"plaintext_length":4,"bogus":1}`)); err == nil {
		t.Fatal("unknown field accepted")
	}
	if _, err := LoadParams(strings.NewReader(`{"plaintext_length":4,"num_plaintexts":10,"key_length":4,"trace_duration":8,"noise_level":0}`)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("noise_level 0: err=%v want ErrInvalidConfig", err)
	}
}

func TestLoadParamsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	doc := `{"plaintext_length":4,"num_plaintexts":20,"key_length":4,"trace_duration":8,"noise_level":1}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := LoadParamsFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *p != DefaultParams() {
		t.Fatalf("params=%+v want defaults", *p)
	}
	if _, err := LoadParamsFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}
