package models

import "sort"

// Slice represents a single 2-D acquisition of a series with its metadata
type Slice struct {
	// Data is the flat row-major intensity data of the slice
	Data []float64

	// Index is the position of this slice in the original file order
	Index int

	// Filename is the original filename of the slice
	Filename string

	// AcquisitionTime is the acquisition timestamp in seconds
	AcquisitionTime float64

	// Parameter is the signal-model acquisition parameter for this slice
	// (b-value for diffusion series, inversion time for T1 series)
	Parameter float64
}

// Series is an ordered collection of slices from one acquisition sequence
type Series struct {
	// Slices holds the acquisitions in their current order
	Slices []Slice

	// Width and Height are the spatial dimensions shared by all slices
	Width  int
	Height int
}

// SortByAcquisitionTime orders the series chronologically. Model-driven
// registration requires a stable inter-frame ordering; diffusion series
// are ordered by acquisition time.
func (s *Series) SortByAcquisitionTime() {
	sort.SliceStable(s.Slices, func(i, j int) bool {
		return s.Slices[i].AcquisitionTime < s.Slices[j].AcquisitionTime
	})
}

// SortByParameter orders the series by its acquisition parameter. T1
// mapping series are ordered by inversion time.
func (s *Series) SortByParameter() {
	sort.SliceStable(s.Slices, func(i, j int) bool {
		return s.Slices[i].Parameter < s.Slices[j].Parameter
	})
}

// Parameters returns the per-slice acquisition parameters in series order
func (s *Series) Parameters() []float64 {
	params := make([]float64, len(s.Slices))
	for i, slice := range s.Slices {
		params[i] = slice.Parameter
	}
	return params
}

// Frames returns the per-slice intensity data in series order
func (s *Series) Frames() [][]float64 {
	frames := make([][]float64, len(s.Slices))
	for i, slice := range s.Slices {
		frames[i] = slice.Data
	}
	return frames
}
