package mdr

import (
	"fmt"
	"log"
	"runtime"
	"sync"
)

// SignalModel is the capability interface over a per-pixel quantitative
// model. Fit receives the time-ordered intensity curve at one pixel and
// the matching acquisition parameters and returns the fitted coefficients
// (one per ParamNames entry) together with the model-predicted curve.
//
// A fit that does not converge numerically is not an error: the model
// returns sentinel coefficients with converged=false and the pixel is
// flagged. A non-nil error signals a contract violation (length mismatch)
// and aborts the run. Fit must be a pure function of its inputs so pixels
// can be fit concurrently.
type SignalModel interface {
	// ParamNames lists the fitted parameters in coefficient order.
	ParamNames() []string

	// Fit fits one pixel curve. len(curve) == len(acq) always holds when
	// called by the controller.
	Fit(curve, acq []float64) (coeffs, predicted []float64, converged bool, err error)
}

// Registration is the interface over a non-rigid registration engine. It
// warps moving toward fixed and returns the warped frame plus the
// pixel-wise displacement increment (dx, dy), relative to the current
// position of the moving image. Implementations must be deterministic
// given identical inputs.
type Registration interface {
	Register(moving, fixed []float64, width, height int) (warped, dx, dy []float64, err error)
}

// Run executes the model-driven registration loop: fit the signal model at
// every pixel, register every frame to its model-predicted counterpart,
// compose the deformation increments, and repeat until the largest
// increment falls to or below opts.Tolerance or opts.MaxIterations is
// reached. The returned Result carries the registered stack, the final
// model fit, the cumulative deformation fields, the fitted parameter maps
// and the per-iteration diagnostics table.
func Run(stack *ImageStack, acq AcquisitionParams, model SignalModel, engine Registration, opts Options) (*Result, error) {
	if err := validateInputs(stack, acq, model, engine, opts); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	frames := stack.NumFrames()
	pixels := stack.NumPixels()

	// The caller's stack stays untouched; the loop iterates on its own copy.
	coreg := stack.Clone()
	fit := NewImageStack(stack.Width, stack.Height, frames)
	acc := NewAccumulator(frames, stack.Width, stack.Height)

	names := model.ParamNames()
	maps := make([]ParameterMap, len(names))
	for i, name := range names {
		maps[i] = ParameterMap{Name: name, Data: make([]float64, pixels)}
	}
	flagged := make([]bool, pixels)

	var records []IterationRecord
	converged := false
	iterations := 0

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		iterations = iter

		// FITTING: every pixel independently, across the worker pool.
		if err := fitPhase(coreg, acq, model, fit, maps, flagged, workers); err != nil {
			return nil, err
		}

		// REGISTERING: every frame independently, moving = current
		// coregistered frame, fixed = its model-predicted counterpart.
		warped, incX, incY, err := registerPhase(coreg, fit, engine, iter)
		if err != nil {
			return nil, err
		}

		// Compose increments into the cumulative fields and record the
		// per-frame maxima for the diagnostics table.
		worst := 0.0
		for f := 0; f < frames; f++ {
			if err := acc.Accumulate(f, incX[f], incY[f]); err != nil {
				return nil, err
			}
			m := maxMagnitude(incX[f], incY[f])
			records = append(records, IterationRecord{Frame: f, Iteration: iter, MaxDeformation: m})
			if m > worst {
				worst = m
			}
		}
		coreg.Frames = warped

		if opts.Verbose {
			log.Printf("mdr: iteration %d, largest deformation %.4f px", iter, worst)
		}

		// CHECK_CONVERGENCE: at or below tolerance means the fields have
		// stabilized; the iteration cap is the safety bound.
		if worst <= opts.Tolerance {
			converged = true
			break
		}
	}

	return Assemble(coreg, fit, acc, maps, records, flagged, converged, iterations)
}

func validateInputs(stack *ImageStack, acq AcquisitionParams, model SignalModel, engine Registration, opts Options) error {
	if stack == nil {
		return &InvalidInputError{Reason: "nil image stack"}
	}
	if stack.Width <= 0 || stack.Height <= 0 {
		return &InvalidInputError{Reason: fmt.Sprintf("frame dimensions %dx%d", stack.Width, stack.Height)}
	}
	// Fitting a model over a single point is meaningless, so a degenerate
	// frame count is an error rather than a silent no-op.
	if stack.NumFrames() < 2 {
		return &InvalidInputError{Reason: fmt.Sprintf("need at least 2 frames, got %d", stack.NumFrames())}
	}
	for i, f := range stack.Frames {
		if len(f) != stack.NumPixels() {
			return &InvalidInputError{Reason: fmt.Sprintf("frame %d has %d pixels, expected %d", i, len(f), stack.NumPixels())}
		}
	}
	if len(acq) != stack.NumFrames() {
		return &InvalidInputError{Reason: fmt.Sprintf("%d acquisition parameters for %d frames", len(acq), stack.NumFrames())}
	}
	if model == nil {
		return &InvalidInputError{Reason: "nil signal model"}
	}
	if engine == nil {
		return &InvalidInputError{Reason: "nil registration engine"}
	}
	if opts.MaxIterations < 1 {
		return &InvalidInputError{Reason: fmt.Sprintf("iteration cap %d", opts.MaxIterations)}
	}
	if opts.Tolerance < 0 {
		return &InvalidInputError{Reason: fmt.Sprintf("negative tolerance %g", opts.Tolerance)}
	}
	return nil
}

// fitPhase fits the signal model at every pixel of the current stack,
// writing the predicted curves into fit and the coefficients into maps.
// The pixel range is split into contiguous chunks, one per worker; every
// pixel writes only its own index, so the output is identical regardless
// of worker count.
func fitPhase(coreg *ImageStack, acq AcquisitionParams, model SignalModel, fit *ImageStack, maps []ParameterMap, flagged []bool, workers int) error {
	frames := coreg.NumFrames()
	pixels := coreg.NumPixels()

	chunk := (pixels + workers - 1) / workers
	errs := make([]error, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > pixels {
			hi = pixels
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(id, lo, hi int) {
			defer wg.Done()
			curve := make([]float64, frames)
			for p := lo; p < hi; p++ {
				for f := 0; f < frames; f++ {
					curve[f] = coreg.Frames[f][p]
				}
				coeffs, predicted, ok, err := model.Fit(curve, acq)
				if err != nil {
					errs[id] = fmt.Errorf("model fit at pixel %d: %w", p, err)
					return
				}
				if len(coeffs) != len(maps) || len(predicted) != frames {
					errs[id] = &AssemblyError{Reason: fmt.Sprintf("model returned %d coefficients and %d predictions at pixel %d", len(coeffs), len(predicted), p)}
					return
				}
				for f := 0; f < frames; f++ {
					fit.Frames[f][p] = predicted[f]
				}
				for k := range maps {
					maps[k].Data[p] = coeffs[k]
				}
				flagged[p] = !ok
			}
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// registerPhase registers every frame of the stack against its
// model-predicted counterpart, one goroutine per frame. An engine failure
// on any frame is fatal for the run and reported with its frame index and
// iteration number; when several frames fail the lowest index wins, so the
// reported error does not depend on scheduling.
func registerPhase(coreg, fit *ImageStack, engine Registration, iteration int) (warped, incX, incY [][]float64, err error) {
	frames := coreg.NumFrames()

	type frameResult struct {
		frame          int
		warped, dx, dy []float64
		err            error
	}
	resultChan := make(chan frameResult, frames)

	for f := 0; f < frames; f++ {
		go func(f int) {
			w, dx, dy, err := engine.Register(coreg.Frames[f], fit.Frames[f], coreg.Width, coreg.Height)
			resultChan <- frameResult{frame: f, warped: w, dx: dx, dy: dy, err: err}
		}(f)
	}

	warped = make([][]float64, frames)
	incX = make([][]float64, frames)
	incY = make([][]float64, frames)
	failedFrame := -1
	var failure error
	for i := 0; i < frames; i++ {
		res := <-resultChan
		if res.err != nil {
			if failedFrame < 0 || res.frame < failedFrame {
				failedFrame = res.frame
				failure = res.err
			}
			continue
		}
		warped[res.frame] = res.warped
		incX[res.frame] = res.dx
		incY[res.frame] = res.dy
	}
	if failedFrame >= 0 {
		return nil, nil, nil, &RegistrationError{Frame: failedFrame, Iteration: iteration, Err: failure}
	}
	return warped, incX, incY, nil
}
