// Package capture stores acquired or simulated power/EM traces on disk and
// turns them into the matrices consumed by the attack.
//
// A capture is a gzip-compressed JSON array with one record per device
// execution: the plaintext fed in, the sampled leakage, and optionally the key
// and ciphertext when they are known.
package capture

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/mat"

	"cema-attack/cpa"
)

// ErrEmptyCapture is returned when a capture holds no traces.
var ErrEmptyCapture = errors.New("capture: no traces")

// Trace is one execution of the target.
type Trace struct {
	Key               []byte    `json:"k,omitempty"`
	Pt                []byte    `json:"pt"`
	Ct                []byte    `json:"ct,omitempty"`
	PowerMeasurements []float64 `json:"pm"`
}

// Capture is an ordered set of traces.
type Capture []Trace

// FromMatrices builds a capture from a plaintext matrix and a time-major trace
// matrix (samples x executions). key may be nil.
func FromMatrices(key []byte, pts cpa.PlaintextMatrix, traces mat.Matrix) (Capture, error) {
	if err := pts.Validate(); err != nil {
		return nil, err
	}
	samples, execs := traces.Dims()
	if execs != pts.Len() {
		return nil, fmt.Errorf("%w: %d plaintexts for %d trace columns", cpa.ErrShapeMismatch, pts.Len(), execs)
	}
	c := make(Capture, execs)
	for i := range c {
		pm := make([]float64, samples)
		for t := range pm {
			pm[t] = traces.At(t, i)
		}
		c[i] = Trace{
			Key:               append([]byte(nil), key...),
			Pt:                append([]byte(nil), pts[i]...),
			PowerMeasurements: pm,
		}
	}
	return c, nil
}

// Validate checks that every trace has the plaintext width and sample count of
// the first one.
func (c Capture) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCapture
	}
	w, s := len(c[0].Pt), len(c[0].PowerMeasurements)
	if w == 0 || s == 0 {
		return fmt.Errorf("%w: trace 0 has %d plaintext bytes and %d samples", cpa.ErrShapeMismatch, w, s)
	}
	for i, t := range c {
		if len(t.Pt) != w {
			return fmt.Errorf("%w: trace %d plaintext len=%d want %d", cpa.ErrShapeMismatch, i, len(t.Pt), w)
		}
		if len(t.PowerMeasurements) != s {
			return fmt.Errorf("%w: trace %d samples=%d want %d", cpa.ErrShapeMismatch, i, len(t.PowerMeasurements), s)
		}
	}
	return nil
}

// Plaintexts returns the plaintext of every trace, in capture order.
func (c Capture) Plaintexts() cpa.PlaintextMatrix {
	pts := make(cpa.PlaintextMatrix, len(c))
	for i, t := range c {
		pts[i] = append([]byte(nil), t.Pt...)
	}
	return pts
}

// TraceMatrix collects the samples in a time-major matrix: row t holds sample
// t of every execution, column i is trace i of the capture.
func (c Capture) TraceMatrix() (*mat.Dense, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	execs := len(c)
	samples := len(c[0].PowerMeasurements)
	data := make([]float64, samples*execs)
	for i, t := range c {
		for s, v := range t.PowerMeasurements {
			data[s*execs+i] = v
		}
	}
	return mat.NewDense(samples, execs, data), nil
}

// Key returns the key recorded with the traces, or nil when it is absent or
// differs between traces.
func (c Capture) Key() []byte {
	if len(c) == 0 || len(c[0].Key) == 0 {
		return nil
	}
	for _, t := range c[1:] {
		if !bytes.Equal(t.Key, c[0].Key) {
			return nil
		}
	}
	return append([]byte(nil), c[0].Key...)
}

// LoadCaptureIo decodes a gzip+JSON capture from src.
func LoadCaptureIo(src io.Reader) (Capture, error) {
	zipper, err := gzip.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zipper.Close()
	var c Capture
	if err := json.NewDecoder(zipper).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCapture reads a capture file.
func LoadCapture(filename string) (Capture, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()
	c, err := LoadCaptureIo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	glog.Infof("capture: loaded %d traces x %d samples from %s", len(c), len(c[0].PowerMeasurements), filename)
	return c, nil
}

// SaveIo writes the capture as gzip+JSON to dst.
func (c Capture) SaveIo(dst io.Writer) error {
	zipper := gzip.NewWriter(dst)
	if err := json.NewEncoder(zipper).Encode(c); err != nil {
		return fmt.Errorf("encode capture: %w", err)
	}
	if err := zipper.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}
	return nil
}

// Save writes the capture to filename, replacing any existing file.
func (c Capture) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create capture file: %w", err)
	}
	if err := c.SaveIo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close capture file: %w", err)
	}
	glog.Infof("capture: wrote %d traces to %s", len(c), filename)
	return nil
}
