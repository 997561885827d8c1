// Package metrics computes registration quality metrics between the
// coregistered series and its model fit: root mean square error,
// structural similarity and mutual information. The values are reported
// for diagnostics only; the convergence decision is driven solely by the
// deformation fields.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the per-frame metrics averaged over a whole series.
type Summary struct {
	// RMSE is the average root mean square intensity difference.
	RMSE float64

	// SSIM is the average structural similarity index, in [-1, 1].
	SSIM float64

	// MI is the average mutual information in bits.
	MI float64
}

// Evaluate computes the summary between two stacks of frames, typically
// the registered series and the model-predicted series.
func Evaluate(a, b [][]float64) (Summary, error) {
	if len(a) != len(b) {
		return Summary{}, fmt.Errorf("stacks have %d and %d frames", len(a), len(b))
	}
	if len(a) == 0 {
		return Summary{}, fmt.Errorf("empty stacks")
	}
	var s Summary
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return Summary{}, fmt.Errorf("frame %d has %d and %d pixels", i, len(a[i]), len(b[i]))
		}
		s.RMSE += RMSE(a[i], b[i])
		s.SSIM += SSIM(a[i], b[i])
		s.MI += MutualInformation(a[i], b[i])
	}
	n := float64(len(a))
	s.RMSE /= n
	s.SSIM /= n
	s.MI /= n
	return s, nil
}

// RMSE is the root mean square intensity difference between two frames.
func RMSE(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}

// SSIM is the global structural similarity index between two frames. The
// stabilization constants follow the standard choice c1=(0.01 L)^2,
// c2=(0.03 L)^2 with L the joint dynamic range.
func SSIM(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	muX := stat.Mean(a, nil)
	muY := stat.Mean(b, nil)
	sigmaX := stat.Variance(a, nil)
	sigmaY := stat.Variance(b, nil)
	sigmaXY := stat.Covariance(a, b, nil)

	l := jointRange(a, b)
	if l == 0 {
		return 1
	}
	c1 := (0.01 * l) * (0.01 * l)
	c2 := (0.03 * l) * (0.03 * l)

	return ((2*muX*muY + c1) * (2*sigmaXY + c2)) /
		((muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2))
}

// MutualInformation estimates the mutual information between two frames
// from a 64-bin joint histogram, in bits.
func MutualInformation(a, b []float64) float64 {
	const bins = 64
	if len(a) == 0 {
		return 0
	}
	l := jointRange(a, b)
	if l == 0 {
		return 0
	}
	lo := jointMin(a, b)

	joint := make([]float64, bins*bins)
	pa := make([]float64, bins)
	pb := make([]float64, bins)
	for i := range a {
		ba := bin(a[i], lo, l, bins)
		bb := bin(b[i], lo, l, bins)
		joint[ba*bins+bb]++
		pa[ba]++
		pb[bb]++
	}
	n := float64(len(a))

	mi := 0.0
	for i := 0; i < bins; i++ {
		for j := 0; j < bins; j++ {
			pij := joint[i*bins+j] / n
			if pij == 0 {
				continue
			}
			pi := pa[i] / n
			pj := pb[j] / n
			mi += pij * math.Log2(pij/(pi*pj))
		}
	}
	return mi
}

func bin(v, lo, span float64, bins int) int {
	idx := int((v - lo) / span * float64(bins))
	if idx < 0 {
		idx = 0
	}
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}

func jointMin(a, b []float64) float64 {
	lo := math.Inf(1)
	for _, v := range a {
		if v < lo {
			lo = v
		}
	}
	for _, v := range b {
		if v < lo {
			lo = v
		}
	}
	return lo
}

func jointRange(a, b []float64) float64 {
	lo := jointMin(a, b)
	hi := math.Inf(-1)
	for _, v := range a {
		if v > hi {
			hi = v
		}
	}
	for _, v := range b {
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}
