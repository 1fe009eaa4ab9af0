// Package cpa implements single-order Correlation Power/EM Analysis against the
// XOR of a plaintext byte with a key byte.
//
// For every key-byte position the attack builds a 256 x N hypothesis matrix
// (row k = HW(pt XOR k) over the N plaintexts), Pearson-correlates every row
// against every time row of a T x N trace matrix, and takes the key guess of the
// largest correlation. Matrices are gonum *mat.Dense values; every stage is
// split across a bounded worker pool (see WithWorkers) and produces the same
// result regardless of the worker count.
package cpa
