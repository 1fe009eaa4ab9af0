package cpa

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"cema-attack/leakage"
	"cema-attack/rng"
)

func hwRow(col []byte, k byte) []float64 {
	row := make([]float64, len(col))
	for i, p := range col {
		row[i] = float64(leakage.Predict(p, k))
	}
	return row
}

func randomRows(src *rng.Source, rows, cols, bound int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(src.IntN(bound))
	}
	return mat.NewDense(rows, cols, data)
}

func TestCorrelationSelfAndComplement(t *testing.T) {
	col := testPlaintexts(t, 1, 40, 11).Column(0)
	x := hwRow(col, 0x3C)
	r, err := Correlation(x, x)
	if err != nil {
		t.Fatalf("self: %v", err)
	}
	if math.Abs(r-1) > 1e-12 {
		t.Fatalf("self correlation=%v want 1", r)
	}

	// HW(p XOR ^k) = 8 - HW(p XOR k)
	y := hwRow(col, ^byte(0x3C))
	r, err = Correlation(x, y)
	if err != nil {
		t.Fatalf("complement: %v", err)
	}
	if math.Abs(r+1) > 1e-12 {
		t.Fatalf("complement correlation=%v want -1", r)
	}
	again, _ := Correlation(x, y)
	if again != r {
		t.Fatalf("correlation not reproducible: %v then %v", r, again)
	}
}

func TestCorrelationZeroVariance(t *testing.T) {
	x := []float64{3, 3, 3, 3}
	y := []float64{1, 2, 3, 4}
	for _, pair := range [][2][]float64{{x, y}, {y, x}, {x, x}} {
		r, err := Correlation(pair[0], pair[1])
		if err != nil {
			t.Fatalf("zero variance: %v", err)
		}
		if r != ZeroVarianceCorrelation {
			t.Fatalf("zero variance correlation=%v want %v", r, ZeroVarianceCorrelation)
		}
	}
}

func TestCorrelationLengthMismatch(t *testing.T) {
	if _, err := Correlation([]float64{1, 2}, []float64{1, 2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err=%v want ErrShapeMismatch", err)
	}
	if _, err := Correlation(nil, nil); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("empty: err=%v want ErrShapeMismatch", err)
	}
}

func TestBuildCorrelationMatrixAgreesWithStat(t *testing.T) {
	src := rng.NewSource(21)
	hypo := randomRows(src, 12, 50, 9)
	traces := randomRows(src, 7, 50, 30)
	c, err := BuildCorrelationMatrix(hypo, traces, WithWorkers(3))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r, cols := c.Dims()
	if r != 12 || cols != 7 {
		t.Fatalf("dims=%dx%d want 12x7", r, cols)
	}
	for k := 0; k < r; k++ {
		for j := 0; j < cols; j++ {
			want := stat.Correlation(mat.Row(nil, k, hypo), mat.Row(nil, j, traces), nil)
			got := c.At(k, j)
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("(%d,%d)=%v want %v", k, j, got, want)
			}
			if got < -1 || got > 1 {
				t.Fatalf("(%d,%d)=%v outside [-1,1]", k, j, got)
			}
		}
	}
}

func TestBuildCorrelationMatrixZeroVarianceRows(t *testing.T) {
	pts := testPlaintexts(t, 1, 30, 4)
	h, err := GenHypoMatrix(pts, 0)
	if err != nil {
		t.Fatalf("hypo: %v", err)
	}
	traces, err := FromRows([][]float64{
		make([]float64, 30), // all zero
		hwRow(pts.Column(0), 0x11),
	})
	if err != nil {
		t.Fatalf("traces: %v", err)
	}
	c, err := BuildCorrelationMatrix(h, traces)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for k := 0; k < KeyGuesses; k++ {
		if v := c.At(k, 0); v != ZeroVarianceCorrelation {
			t.Fatalf("constant trace row: (%d,0)=%v", k, v)
		}
		if math.IsNaN(c.At(k, 1)) {
			t.Fatalf("NaN at (%d,1)", k)
		}
	}
	if math.Abs(c.At(0x11, 1)-1) > 1e-12 {
		t.Fatalf("matching hypothesis correlation=%v want 1", c.At(0x11, 1))
	}
}

func TestBuildCorrelationMatrixShapeMismatch(t *testing.T) {
	src := rng.NewSource(8)
	c, err := BuildCorrelationMatrix(randomRows(src, 4, 10, 5), randomRows(src, 3, 11, 5))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err=%v want ErrShapeMismatch", err)
	}
	if c != nil {
		t.Fatal("partial matrix returned with error")
	}
}

func TestBuildCorrelationMatrixWorkerIndependent(t *testing.T) {
	src := rng.NewSource(13)
	hypo := randomRows(src, 256, 80, 9)
	traces := randomRows(src, 10, 80, 40)
	a, err := BuildCorrelationMatrix(hypo, traces, WithWorkers(1))
	if err != nil {
		t.Fatalf("1 worker: %v", err)
	}
	b, err := BuildCorrelationMatrix(hypo, traces, WithWorkers(16))
	if err != nil {
		t.Fatalf("16 workers: %v", err)
	}
	if !mat.Equal(a, b) {
		t.Fatal("correlation matrix depends on worker count")
	}
}
