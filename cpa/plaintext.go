package cpa

import (
	"fmt"

	"cema-attack/rng"
)

// PlaintextMatrix holds one plaintext per row; column j is byte j of every
// plaintext.
type PlaintextMatrix [][]byte

// Len returns the number of plaintexts.
func (m PlaintextMatrix) Len() int { return len(m) }

// Width returns the number of bytes per plaintext.
func (m PlaintextMatrix) Width() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Validate checks that the matrix is non-empty and rectangular.
func (m PlaintextMatrix) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("%w: empty plaintext matrix", ErrShapeMismatch)
	}
	w := len(m[0])
	if w == 0 {
		return fmt.Errorf("%w: zero-width plaintexts", ErrShapeMismatch)
	}
	for i, row := range m {
		if len(row) != w {
			return fmt.Errorf("%w: plaintext %d len=%d want %d", ErrShapeMismatch, i, len(row), w)
		}
	}
	return nil
}

// Column copies byte j of every plaintext.
func (m PlaintextMatrix) Column(j int) []byte {
	col := make([]byte, len(m))
	for i, row := range m {
		col[i] = row[j]
	}
	return col
}

// GenPlainTexts draws numPlainTexts plaintexts of plainTextLength uniform
// bytes from src, row by row. A nil src is replaced by an entropy-seeded one.
func GenPlainTexts(plainTextLength, numPlainTexts int, src *rng.Source) (PlaintextMatrix, error) {
	if plainTextLength <= 0 {
		return nil, fmt.Errorf("%w: plainTextLength=%d must be >0", ErrInvalidConfig, plainTextLength)
	}
	if numPlainTexts <= 0 {
		return nil, fmt.Errorf("%w: numPlainTexts=%d must be >0", ErrInvalidConfig, numPlainTexts)
	}
	if src == nil {
		var err error
		if src, err = rng.NewEntropySource(); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, plainTextLength*numPlainTexts)
	if _, err := src.Read(buf); err != nil {
		return nil, fmt.Errorf("read plaintext bytes: %w", err)
	}
	pts := make(PlaintextMatrix, numPlainTexts)
	for i := range pts {
		pts[i] = buf[i*plainTextLength : (i+1)*plainTextLength : (i+1)*plainTextLength]
	}
	return pts, nil
}
