package metrics

import (
	"math"
	"testing"
)

func checker(n int) []float64 {
	data := make([]float64, n)
	for i := range data {
		if i%2 == 0 {
			data[i] = 100
		}
	}
	return data
}

func TestRMSE(t *testing.T) {
	a := []float64{0, 0, 0, 0}
	b := []float64{3, 3, 3, 3}
	if got := RMSE(a, b); math.Abs(got-3) > 1e-12 {
		t.Errorf("RMSE = %g, want 3", got)
	}
	if got := RMSE(a, a); got != 0 {
		t.Errorf("RMSE of identical frames = %g, want 0", got)
	}
}

func TestSSIMIdenticalFrames(t *testing.T) {
	frame := checker(64)
	if got := SSIM(frame, frame); math.Abs(got-1) > 1e-9 {
		t.Errorf("SSIM of identical frames = %g, want 1", got)
	}
}

func TestSSIMInvertedFrames(t *testing.T) {
	a := checker(64)
	b := make([]float64, len(a))
	for i := range a {
		b[i] = 100 - a[i]
	}
	// Perfectly anti-correlated structure scores well below identity.
	if got := SSIM(a, b); got > 0 {
		t.Errorf("SSIM of inverted frames = %g, want negative", got)
	}
}

func TestMutualInformation(t *testing.T) {
	a := checker(256)

	// A two-valued frame against itself carries exactly 1 bit.
	if got := MutualInformation(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("MI of identical two-valued frames = %g, want 1", got)
	}

	// Independent halves: a alternates per pixel, b flips per pair, so the
	// joint distribution factorizes and MI vanishes.
	b := make([]float64, len(a))
	for i := range b {
		if (i/2)%2 == 0 {
			b[i] = 100
		}
	}
	if got := MutualInformation(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("MI of independent frames = %g, want 0", got)
	}
}

func TestEvaluate(t *testing.T) {
	a := [][]float64{checker(64), checker(64)}
	b := [][]float64{checker(64), checker(64)}

	summary, err := Evaluate(a, b)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if summary.RMSE != 0 {
		t.Errorf("RMSE = %g, want 0", summary.RMSE)
	}
	if math.Abs(summary.SSIM-1) > 1e-9 {
		t.Errorf("SSIM = %g, want 1", summary.SSIM)
	}
	if math.Abs(summary.MI-1) > 1e-9 {
		t.Errorf("MI = %g, want 1", summary.MI)
	}
}

func TestEvaluateRejectsMismatchedStacks(t *testing.T) {
	if _, err := Evaluate([][]float64{checker(16)}, nil); err == nil {
		t.Error("Expected an error for different frame counts")
	}
	if _, err := Evaluate(nil, nil); err == nil {
		t.Error("Expected an error for empty stacks")
	}
	if _, err := Evaluate([][]float64{checker(16)}, [][]float64{checker(9)}); err == nil {
		t.Error("Expected an error for different frame sizes")
	}
}
