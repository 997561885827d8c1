package export

import (
	"encoding/csv"
	"image"
	"os"
	"path/filepath"
	"testing"

	"mdr/pkg/mdr"
)

func gradientFrame(width, height int) []float64 {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = float64(i)
	}
	return data
}

func TestFrameImageNormalizesRange(t *testing.T) {
	img, err := FrameImage(gradientFrame(4, 4), 4, 4)
	if err != nil {
		t.Fatalf("FrameImage failed: %v", err)
	}

	gray, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("Expected *image.Gray16, got %T", img)
	}
	if gray.Gray16At(0, 0).Y != 0 {
		t.Errorf("Minimum intensity mapped to %d, want 0", gray.Gray16At(0, 0).Y)
	}
	if gray.Gray16At(3, 3).Y != 65535 {
		t.Errorf("Maximum intensity mapped to %d, want 65535", gray.Gray16At(3, 3).Y)
	}
}

func TestFrameImageConstantFrame(t *testing.T) {
	img, err := FrameImage([]float64{7, 7, 7, 7}, 2, 2)
	if err != nil {
		t.Fatalf("FrameImage failed: %v", err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}
}

func TestFrameImageRejectsWrongSize(t *testing.T) {
	if _, err := FrameImage(make([]float64, 3), 2, 2); err == nil {
		t.Fatal("Expected an error for a short frame")
	}
}

func TestSaveFramesWritesOneFilePerFrame(t *testing.T) {
	dir := t.TempDir()
	frames := [][]float64{gradientFrame(4, 4), gradientFrame(4, 4), gradientFrame(4, 4)}

	if err := SaveFrames(frames, 4, 4, dir, "registered"); err != nil {
		t.Fatalf("SaveFrames failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "registered_00"+string(rune('0'+i))+".jpg")
		if _, err := os.Stat(name); err != nil {
			t.Errorf("Missing output file %s: %v", name, err)
		}
	}
}

func TestSaveAndLoadFrameRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpg")
	if err := SaveFrame(gradientFrame(8, 6), 8, 6, path); err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}

	data, width, height, err := LoadFrame(path)
	if err != nil {
		t.Fatalf("LoadFrame failed: %v", err)
	}
	if width != 8 || height != 6 {
		t.Fatalf("Loaded %dx%d, want 8x6", width, height)
	}
	if len(data) != 48 {
		t.Fatalf("Loaded %d pixels, want 48", len(data))
	}
	// JPEG is lossy; just confirm the gradient direction survived.
	if data[0] >= data[47] {
		t.Errorf("Gradient lost in round trip: first %g, last %g", data[0], data[47])
	}
}

func TestWriteDiagnosticsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "largest_deformations.csv")
	records := []mdr.IterationRecord{
		{Frame: 0, Iteration: 1, MaxDeformation: 0},
		{Frame: 0, Iteration: 2, MaxDeformation: 0.25},
		{Frame: 1, Iteration: 1, MaxDeformation: 1.5},
		{Frame: 1, Iteration: 2, MaxDeformation: 0.5},
	}

	if err := WriteDiagnosticsCSV(records, path); err != nil {
		t.Fatalf("WriteDiagnosticsCSV failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open CSV: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(rows) != len(records)+1 {
		t.Fatalf("Expected %d rows, got %d", len(records)+1, len(rows))
	}
	if rows[0][0] != "frame" || rows[0][2] != "maximum_deformation" {
		t.Errorf("Unexpected header %v", rows[0])
	}
	if rows[3][0] != "1" || rows[3][1] != "1" || rows[3][2] != "1.5" {
		t.Errorf("Unexpected row %v", rows[3])
	}
}
