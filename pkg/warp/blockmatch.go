package warp

import (
	"fmt"
	"math"
)

// BlockMatch is a deterministic free-form registration engine based on
// block matching over a control grid. Each control node searches the
// integer shift that minimizes the mean squared difference between the
// moving block and the fixed block, the search radius halving on every
// refinement pass. Node displacements are then interpolated bilinearly to
// a dense field and the moving image is resampled through it.
//
// Recognized Config keys:
//
//	GridSpacing               control node spacing in pixels (default 8)
//	SearchRadius              initial shift search radius (default 4)
//	MaximumNumberOfIterations cap on refinement passes (default 256)
type BlockMatch struct {
	cfg Config
}

// NewBlockMatch creates an engine with the given configuration. A nil
// config selects all defaults.
func NewBlockMatch(cfg Config) *BlockMatch {
	if cfg == nil {
		cfg = Config{}
	}
	return &BlockMatch{cfg: cfg}
}

// Register implements the engine contract. The returned dx, dy slices are
// the dense displacement increment; warped is moving resampled through
// it. Identical inputs produce identical outputs regardless of call
// order.
func (e *BlockMatch) Register(moving, fixed []float64, width, height int) (warped, dx, dy []float64, err error) {
	pixels := width * height
	if width <= 0 || height <= 0 {
		return nil, nil, nil, fmt.Errorf("frame dimensions %dx%d", width, height)
	}
	if len(moving) != pixels || len(fixed) != pixels {
		return nil, nil, nil, fmt.Errorf("moving has %d pixels, fixed has %d, expected %d", len(moving), len(fixed), pixels)
	}
	for i := 0; i < pixels; i++ {
		if !finite(moving[i]) || !finite(fixed[i]) {
			return nil, nil, nil, fmt.Errorf("non-finite intensity at pixel %d", i)
		}
	}

	spacing := e.cfg.intOption("GridSpacing", 8)
	if spacing < 2 {
		spacing = 2
	}
	radius := e.cfg.intOption("SearchRadius", 4)
	if radius < 1 {
		radius = 1
	}
	maxPasses := e.cfg.intOption("MaximumNumberOfIterations", 256)
	if maxPasses < 1 {
		maxPasses = 1
	}

	// Control grid covering the full frame, last row/column pinned to the
	// border so interpolation never extrapolates.
	gxs := gridCoords(width, spacing)
	gys := gridCoords(height, spacing)

	nodeDX := make([]float64, len(gxs)*len(gys))
	nodeDY := make([]float64, len(gxs)*len(gys))
	for j, gy := range gys {
		for i, gx := range gxs {
			u, v := e.matchBlock(moving, fixed, width, height, gx, gy, spacing, radius, maxPasses)
			nodeDX[j*len(gxs)+i] = u
			nodeDY[j*len(gxs)+i] = v
		}
	}

	dx = make([]float64, pixels)
	dy = make([]float64, pixels)
	interpolateGrid(nodeDX, gxs, gys, width, height, dx)
	interpolateGrid(nodeDY, gxs, gys, width, height, dy)

	warped = make([]float64, pixels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := y*width + x
			warped[p] = bilinearSample(moving, width, height, float64(x)+dx[p], float64(y)+dy[p])
		}
	}
	return warped, dx, dy, nil
}

// matchBlock finds the integer shift minimizing the mean squared block
// difference around one control node. The zero shift is evaluated first
// and only strict improvements replace it, so flat cost landscapes yield
// zero displacement.
func (e *BlockMatch) matchBlock(moving, fixed []float64, width, height, cx, cy, spacing, radius, maxPasses int) (float64, float64) {
	bestU, bestV := 0, 0
	bestCost := blockCost(moving, fixed, width, height, cx, cy, spacing, 0, 0)

	for pass := 0; pass < maxPasses && radius >= 1; pass++ {
		centerU, centerV := bestU, bestV
		for v := centerV - radius; v <= centerV+radius; v++ {
			for u := centerU - radius; u <= centerU+radius; u++ {
				if u == bestU && v == bestV {
					continue
				}
				cost := blockCost(moving, fixed, width, height, cx, cy, spacing, u, v)
				if cost < bestCost {
					bestCost = cost
					bestU, bestV = u, v
				}
			}
		}
		radius /= 2
	}
	return float64(bestU), float64(bestV)
}

// blockCost is the mean squared difference between the shifted moving
// block and the fixed block centered on (cx, cy).
func blockCost(moving, fixed []float64, width, height, cx, cy, spacing, u, v int) float64 {
	sum := 0.0
	count := 0
	for oy := -spacing; oy <= spacing; oy++ {
		y := cy + oy
		if y < 0 || y >= height {
			continue
		}
		my := y + v
		if my < 0 || my >= height {
			continue
		}
		for ox := -spacing; ox <= spacing; ox++ {
			x := cx + ox
			if x < 0 || x >= width {
				continue
			}
			mx := x + u
			if mx < 0 || mx >= width {
				continue
			}
			d := moving[my*width+mx] - fixed[y*width+x]
			sum += d * d
			count++
		}
	}
	if count == 0 {
		return math.Inf(1)
	}
	return sum / float64(count)
}

// gridCoords returns node coordinates 0, s, 2s, ... with the border pixel
// appended, always at least two nodes per axis.
func gridCoords(size, spacing int) []int {
	coords := []int{}
	for c := 0; c < size; c += spacing {
		coords = append(coords, c)
	}
	if coords[len(coords)-1] != size-1 {
		coords = append(coords, size-1)
	}
	if len(coords) == 1 {
		coords = append(coords, coords[0])
	}
	return coords
}

// interpolateGrid expands scattered node values to a dense per-pixel
// field by bilinear interpolation over the grid cells.
func interpolateGrid(nodes []float64, gxs, gys []int, width, height int, out []float64) {
	for y := 0; y < height; y++ {
		j := cellIndex(gys, y)
		y0, y1 := gys[j], gys[j+1]
		wy := 0.0
		if y1 > y0 {
			wy = float64(y-y0) / float64(y1-y0)
		}
		for x := 0; x < width; x++ {
			i := cellIndex(gxs, x)
			x0, x1 := gxs[i], gxs[i+1]
			wx := 0.0
			if x1 > x0 {
				wx = float64(x-x0) / float64(x1-x0)
			}
			n00 := nodes[j*len(gxs)+i]
			n10 := nodes[j*len(gxs)+i+1]
			n01 := nodes[(j+1)*len(gxs)+i]
			n11 := nodes[(j+1)*len(gxs)+i+1]
			top := n00*(1-wx) + n10*wx
			bottom := n01*(1-wx) + n11*wx
			out[y*width+x] = top*(1-wy) + bottom*wy
		}
	}
}

// cellIndex returns the index of the grid interval containing coordinate c.
func cellIndex(coords []int, c int) int {
	for i := len(coords) - 2; i > 0; i-- {
		if c >= coords[i] {
			return i
		}
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
