// Package export writes registration products to disk: frames, parameter
// maps and deformation-field channels as grayscale JPEG images, and the
// diagnostics table as CSV. It is a collaborator of the optimization core,
// invoked by the caller after the core returns in-memory results.
package export

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"mdr/pkg/mdr"
)

// FrameImage converts a flat frame to a 16-bit grayscale image, scaling
// the frame's own intensity range to the full 16-bit range. A constant
// frame maps to black.
func FrameImage(data []float64, width, height int) (image.Image, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("frame has %d pixels, expected %dx%d", len(data), width, height)
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			norm := (data[y*width+x] - lo) / span
			value := uint16(math.Max(0, math.Min(65535, norm*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SaveFrame writes a single frame as a JPEG image.
func SaveFrame(data []float64, width, height int, filename string) error {
	img, err := FrameImage(data, width, height)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveFrames writes a stack of frames as prefix_000.jpg, prefix_001.jpg, ...
func SaveFrames(frames [][]float64, width, height int, dir, prefix string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i, frame := range frames {
		filename := filepath.Join(dir, fmt.Sprintf("%s_%03d.jpg", prefix, i))
		if err := SaveFrame(frame, width, height, filename); err != nil {
			return fmt.Errorf("failed to save frame %d: %v", i, err)
		}
	}
	return nil
}

// WriteDiagnosticsCSV writes the per-(frame, iteration) largest-deformation
// table to a CSV file.
func WriteDiagnosticsCSV(records []mdr.IterationRecord, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"frame", "iteration", "maximum_deformation"}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Frame),
			strconv.Itoa(rec.Iteration),
			strconv.FormatFloat(rec.MaxDeformation, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadFrame decodes an image file into a flat grayscale intensity slice.
// Any format registered with image (JPEG, PNG) is accepted.
func LoadFrame(filename string) ([]float64, int, int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, 0, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode %s: %v", filename, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	data := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Luminance from the 16-bit channels; grayscale sources have
			// r == g == b.
			data[y*width+x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return data, width, height, nil
}
