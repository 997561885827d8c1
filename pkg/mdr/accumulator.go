package mdr

// DeformationField is the cumulative per-pixel displacement of one frame,
// mapping the original frame to its current registered position. X and Y
// are flat row-major channels with the same dimensions as a frame.
type DeformationField struct {
	X []float64
	Y []float64
}

// Accumulator owns the cumulative deformation fields, one per frame. The
// registration engine returns increments relative to the current position
// of the (already warped) moving image, so composition is vector addition
// in displacement space. That choice is applied uniformly; no other
// composition rule is supported.
type Accumulator struct {
	fields []DeformationField
	width  int
	height int
}

// NewAccumulator creates zero-displacement fields for the given number of
// frames.
func NewAccumulator(frames, width, height int) *Accumulator {
	a := &Accumulator{
		fields: make([]DeformationField, frames),
		width:  width,
		height: height,
	}
	for i := range a.fields {
		a.fields[i] = DeformationField{
			X: make([]float64, width*height),
			Y: make([]float64, width*height),
		}
	}
	return a
}

// NumFrames returns the number of per-frame fields held.
func (a *Accumulator) NumFrames() int {
	return len(a.fields)
}

// Accumulate composes one iteration's increment into the running field of
// the given frame. The increment slices must have frame dimensions.
func (a *Accumulator) Accumulate(frame int, dx, dy []float64) error {
	if frame < 0 || frame >= len(a.fields) {
		return &AssemblyError{Reason: "deformation increment for out-of-range frame"}
	}
	f := a.fields[frame]
	if len(dx) != len(f.X) || len(dy) != len(f.Y) {
		return &AssemblyError{Reason: "deformation increment dimensions do not match the frame"}
	}
	for i := range dx {
		f.X[i] += dx[i]
		f.Y[i] += dy[i]
	}
	return nil
}

// MaxMagnitude returns the largest pixel-wise magnitude of the cumulative
// field for the given frame.
func (a *Accumulator) MaxMagnitude(frame int) float64 {
	f := a.fields[frame]
	return maxMagnitude(f.X, f.Y)
}

// Field returns the cumulative field of one frame. The returned slices are
// the accumulator's own storage; callers must treat them as read-only.
func (a *Accumulator) Field(frame int) DeformationField {
	return a.fields[frame]
}

// Fields returns all cumulative fields in frame order.
func (a *Accumulator) Fields() []DeformationField {
	return a.fields
}
