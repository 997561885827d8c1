package models

import "testing"

func testSeries() *Series {
	return &Series{
		Slices: []Slice{
			{Index: 0, Filename: "a.jpg", AcquisitionTime: 30, Parameter: 900, Data: []float64{3}},
			{Index: 1, Filename: "b.jpg", AcquisitionTime: 10, Parameter: 0, Data: []float64{1}},
			{Index: 2, Filename: "c.jpg", AcquisitionTime: 20, Parameter: 400, Data: []float64{2}},
		},
		Width:  1,
		Height: 1,
	}
}

func TestSortByAcquisitionTime(t *testing.T) {
	s := testSeries()
	s.SortByAcquisitionTime()

	want := []int{1, 2, 0}
	for i, idx := range want {
		if s.Slices[i].Index != idx {
			t.Errorf("Position %d: expected slice %d, got %d", i, idx, s.Slices[i].Index)
		}
	}
}

func TestSortByParameter(t *testing.T) {
	s := testSeries()
	s.SortByParameter()

	want := []float64{0, 400, 900}
	for i, p := range want {
		if s.Slices[i].Parameter != p {
			t.Errorf("Position %d: expected parameter %g, got %g", i, p, s.Slices[i].Parameter)
		}
	}
}

func TestParametersAndFramesFollowOrder(t *testing.T) {
	s := testSeries()
	s.SortByParameter()

	params := s.Parameters()
	frames := s.Frames()
	if len(params) != 3 || len(frames) != 3 {
		t.Fatalf("Expected 3 entries, got %d and %d", len(params), len(frames))
	}
	for i := range params {
		// Frame data was built to equal its sorted position + 1.
		if frames[i][0] != float64(i+1) {
			t.Errorf("Frame %d carries data %g, want %d", i, frames[i][0], i+1)
		}
	}
	if params[0] != 0 || params[2] != 900 {
		t.Errorf("Parameters out of order: %v", params)
	}
}
