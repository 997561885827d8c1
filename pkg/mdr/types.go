// Package mdr implements model-driven registration of 2-D medical image
// time series. A per-pixel quantitative signal model (e.g. mono-exponential
// diffusion decay or T1 recovery) is fit across the series, every frame is
// registered back to its model-predicted counterpart, and the two steps
// alternate until the deformation fields stabilize. The result is a
// motion-corrected series together with the fitted parameter maps.
//
// The registration engine and the signal model are injected strategies; the
// package itself contains only the orchestration loop, the deformation-field
// bookkeeping and the convergence logic.
package mdr

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ImageStack is an ordered series of 2-D frames sharing the same spatial
// dimensions. Frames are stored as flat row-major float64 slices and are
// indexed by acquisition order: the caller supplies the stack already sorted
// by its ordering criterion (acquisition time, b-value, inversion time).
type ImageStack struct {
	// Frames holds one flat Width*Height intensity slice per acquisition.
	Frames [][]float64

	// Width and Height are the spatial dimensions shared by every frame.
	Width  int
	Height int
}

// NewImageStack allocates a zero-filled stack with the given dimensions.
func NewImageStack(width, height, frames int) *ImageStack {
	s := &ImageStack{
		Frames: make([][]float64, frames),
		Width:  width,
		Height: height,
	}
	for i := range s.Frames {
		s.Frames[i] = make([]float64, width*height)
	}
	return s
}

// NumFrames returns the number of acquisitions in the stack.
func (s *ImageStack) NumFrames() int {
	return len(s.Frames)
}

// NumPixels returns the number of pixels in a single frame.
func (s *ImageStack) NumPixels() int {
	return s.Width * s.Height
}

// Clone returns a deep copy of the stack. The controller clones its input
// once up front so the caller's data stays untouched for the whole run.
func (s *ImageStack) Clone() *ImageStack {
	c := &ImageStack{
		Frames: make([][]float64, len(s.Frames)),
		Width:  s.Width,
		Height: s.Height,
	}
	for i, f := range s.Frames {
		c.Frames[i] = make([]float64, len(f))
		copy(c.Frames[i], f)
	}
	return c
}

// AcquisitionParams holds the per-frame scalar driving the signal model
// (b-value for diffusion, inversion time for T1 mapping). Order and length
// match the ImageStack frame order.
type AcquisitionParams []float64

// ParameterMap is the spatial map of one fitted signal-model parameter,
// same dimensions as a single frame.
type ParameterMap struct {
	// Name identifies the parameter (e.g. "S0", "ADC", "T1").
	Name string

	// Data is the flat row-major map, one value per pixel.
	Data []float64
}

// IterationRecord captures the largest deformation observed for one frame
// during one iteration. Records are append-only and form the final
// diagnostics table.
type IterationRecord struct {
	// Frame is the acquisition index the record refers to.
	Frame int

	// Iteration is the 1-based iteration number.
	Iteration int

	// MaxDeformation is the largest pixel-wise magnitude of the deformation
	// increment applied to the frame during this iteration, in pixels.
	MaxDeformation float64
}

// Options configures a registration run. All values are externally supplied;
// nothing is hardcoded in the loop itself.
type Options struct {
	// Tolerance is the convergence threshold in pixels. The loop stops once
	// the largest per-frame deformation increment is at or below it.
	Tolerance float64

	// MaxIterations caps the fit/register alternation. The alternation is
	// not guaranteed to converge monotonically, so the cap is a safety
	// bound rather than an expected outcome.
	MaxIterations int

	// Workers is the number of goroutines used for the per-pixel model
	// fits. Zero or negative means runtime.NumCPU.
	Workers int

	// Verbose enables per-iteration progress logging.
	Verbose bool
}

// maxMagnitude returns the largest pixel-wise Euclidean magnitude of a
// two-channel displacement field.
func maxMagnitude(dx, dy []float64) float64 {
	if len(dx) == 0 {
		return 0
	}
	mags := make([]float64, len(dx))
	for i := range dx {
		mags[i] = math.Hypot(dx[i], dy[i])
	}
	return floats.Max(mags)
}
