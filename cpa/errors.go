package cpa

import "errors"

var (
	// ErrInvalidConfig is returned for non-positive sizes, noise levels below 1
	// and other caller-side configuration bugs.
	ErrInvalidConfig = errors.New("cpa: invalid configuration")

	// ErrShapeMismatch is returned when matrix dimensions disagree or an index
	// falls outside the plaintext width.
	ErrShapeMismatch = errors.New("cpa: shape mismatch")
)

// ZeroVarianceCorrelation is the value stored for a (hypothesis, trace) pair
// where either row is constant and the Pearson coefficient is undefined.
const ZeroVarianceCorrelation = 0.0
