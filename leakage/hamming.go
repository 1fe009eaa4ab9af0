// Package leakage holds the Hamming-weight power model used by the CPA attack.
//
// The model assumes the device leaks HW(pt XOR k) when it processes the first
// round-key addition for a byte; both the hypothesis builder and the synthetic
// trace generator go through Predict so the two can never disagree.
package leakage

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrOutOfRange is returned by HammingWeightOf for values that do not fit in a byte.
var ErrOutOfRange = errors.New("leakage: value outside [0,255]")

// MaxWeight is the largest Hamming weight of a byte.
const MaxWeight = 8

var hwTable [256]uint8

func init() {
	for v := range hwTable {
		hwTable[v] = uint8(bits.OnesCount8(uint8(v)))
	}
}

// HammingWeight returns the number of set bits in b.
func HammingWeight(b byte) int {
	return int(hwTable[b])
}

// HammingWeightOf is the checked variant of HammingWeight for plain ints.
func HammingWeightOf(v int) (int, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("%w: got %d", ErrOutOfRange, v)
	}
	return int(hwTable[v]), nil
}

// Predict returns the modelled leakage HW(pt XOR k).
func Predict(pt, k byte) int {
	return int(hwTable[pt^k])
}
