// Package rng provides the seeded byte source shared by the plaintext and
// synthetic trace generators.
//
// A Source is a lattigo KeyedPRNG (blake2b XOF) keyed with 32 bytes expanded from
// the caller's seed through SHAKE256, so two sources built from the same seed emit
// the same stream on every platform.
package rng

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tuneinsight/lattigo/v4/utils"
	"golang.org/x/crypto/sha3"
)

// KeySize is the length of the PRNG key derived from a seed.
const KeySize = 32

const maxKeySize = 64

// Source is a deterministic stream of random bytes. It is not safe for
// concurrent use.
type Source struct {
	key  []byte
	prng *utils.KeyedPRNG
	buf  [8]byte
}

// NewSource derives a Source from a numeric seed.
func NewSource(seed uint64) *Source {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], seed)
	s, err := NewKeyedSource(expand("cema/seed", le[:]))
	if err != nil {
		panic(fmt.Errorf("rng: seed %d: %w", seed, err))
	}
	return s
}

// NewKeyedSource builds a Source directly from a PRNG key (1 to 64 bytes).
func NewKeyedSource(key []byte) (*Source, error) {
	if len(key) == 0 || len(key) > maxKeySize {
		return nil, fmt.Errorf("rng: key length=%d want 1..%d", len(key), maxKeySize)
	}
	k := append([]byte(nil), key...)
	prng, err := utils.NewKeyedPRNG(k)
	if err != nil {
		return nil, fmt.Errorf("rng: keyed prng: %w", err)
	}
	return &Source{key: k, prng: prng}, nil
}

// NewEntropySource returns a Source keyed from system entropy.
func NewEntropySource() (*Source, error) {
	seeder, err := utils.NewPRNG()
	if err != nil {
		return nil, fmt.Errorf("rng: entropy prng: %w", err)
	}
	key := make([]byte, KeySize)
	if _, err := seeder.Read(key); err != nil {
		return nil, fmt.Errorf("rng: read entropy: %w", err)
	}
	return NewKeyedSource(key)
}

// Derive returns an independent Source for the given label. The parent stream
// is left untouched.
func (s *Source) Derive(label string) *Source {
	child, err := NewKeyedSource(expand("cema/derive", s.key, []byte(label)))
	if err != nil {
		panic(fmt.Errorf("rng: derive %q: %w", label, err))
	}
	return child
}

// Read fills p with the next len(p) bytes of the stream.
func (s *Source) Read(p []byte) (int, error) {
	n, err := s.prng.Read(p)
	if err == nil && n != len(p) {
		err = errors.New("rng: short read")
	}
	return n, err
}

// Reset rewinds the stream to its first byte.
func (s *Source) Reset() {
	s.prng.Reset()
}

// Byte returns the next byte of the stream.
func (s *Source) Byte() byte {
	s.mustRead(s.buf[:1])
	return s.buf[0]
}

// Uint64 returns the next 8 bytes of the stream as a little-endian integer.
func (s *Source) Uint64() uint64 {
	s.mustRead(s.buf[:])
	return binary.LittleEndian.Uint64(s.buf[:])
}

// IntN returns a uniform int in [0,n). It panics if n <= 0.
func (s *Source) IntN(n int) int {
	if n <= 0 {
		panic("rng: IntN with n <= 0")
	}
	if n == 1 {
		return 0
	}
	un := uint64(n)
	// 2^64 mod n; values below it would bias the low residues
	thresh := -un % un
	for {
		v := s.Uint64()
		if v >= thresh {
			return int(v % un)
		}
	}
}

func (s *Source) mustRead(p []byte) {
	if _, err := s.Read(p); err != nil {
		panic(fmt.Errorf("rng: %w", err))
	}
}

func expand(label string, parts ...[]byte) []byte {
	h := sha3.NewShake256()
	h.Write([]byte(label))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write(p)
	}
	out := make([]byte, KeySize)
	h.Read(out)
	return out
}
