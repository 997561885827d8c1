package warp

import "math"

// bilinearSample reads data at a fractional position with border clamping.
func bilinearSample(data []float64, width, height int, x, y float64) float64 {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x > float64(width-1) {
		x = float64(width - 1)
	}
	if y > float64(height-1) {
		y = float64(height - 1)
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > width-1 {
		x1 = width - 1
	}
	if y1 > height-1 {
		y1 = height - 1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := data[y0*width+x0]
	v10 := data[y0*width+x1]
	v01 := data[y1*width+x0]
	v11 := data[y1*width+x1]

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}
