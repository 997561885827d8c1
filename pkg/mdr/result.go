package mdr

import (
	"fmt"
	"sort"
)

// Result is the bundle returned by Run: the registered series, the final
// model fit, the cumulative deformation fields, the fitted parameter maps
// and the full diagnostics table.
type Result struct {
	// Coregistered is the motion-corrected image stack.
	Coregistered *ImageStack

	// ModelFit is the model-predicted stack from the final iteration.
	ModelFit *ImageStack

	// Deformation holds the cumulative per-frame deformation fields.
	Deformation []DeformationField

	// Maps holds one spatial map per fitted parameter, in the model's
	// coefficient order.
	Maps []ParameterMap

	// Diagnostics lists the largest deformation per (frame, iteration),
	// ordered by frame then iteration.
	Diagnostics []IterationRecord

	// Flagged marks pixels whose final model fit did not converge and
	// carry sentinel values in Maps and ModelFit.
	Flagged []bool

	// Converged reports whether the loop stopped on tolerance rather than
	// on the iteration cap.
	Converged bool

	// Iterations is the number of iterations actually run.
	Iterations int
}

// FlaggedCount returns the number of pixels with sentinel fit output.
func (r *Result) FlaggedCount() int {
	n := 0
	for _, f := range r.Flagged {
		if f {
			n++
		}
	}
	return n
}

// Assemble packages the loop products into a Result. It performs no
// computation beyond defensive shape checks: a mismatch between the
// accumulated products means an internal invariant was violated upstream.
func Assemble(coreg, fit *ImageStack, acc *Accumulator, maps []ParameterMap, records []IterationRecord, flagged []bool, converged bool, iterations int) (*Result, error) {
	if coreg == nil || fit == nil || acc == nil {
		return nil, &AssemblyError{Reason: "missing component output"}
	}
	frames := coreg.NumFrames()
	pixels := coreg.NumPixels()
	if fit.NumFrames() != frames {
		return nil, &AssemblyError{Reason: fmt.Sprintf("model fit has %d frames, registered stack has %d", fit.NumFrames(), frames)}
	}
	if acc.NumFrames() != frames {
		return nil, &AssemblyError{Reason: fmt.Sprintf("deformation stack has %d frames, registered stack has %d", acc.NumFrames(), frames)}
	}
	for _, m := range maps {
		if len(m.Data) != pixels {
			return nil, &AssemblyError{Reason: fmt.Sprintf("parameter map %q has %d pixels, expected %d", m.Name, len(m.Data), pixels)}
		}
	}
	if len(flagged) != pixels {
		return nil, &AssemblyError{Reason: fmt.Sprintf("flag mask has %d pixels, expected %d", len(flagged), pixels)}
	}
	if len(records) != frames*iterations {
		return nil, &AssemblyError{Reason: fmt.Sprintf("%d diagnostics rows for %d frames over %d iterations", len(records), frames, iterations)}
	}

	// The loop appends records iteration-major; the table is reported
	// frame-major to match the per-frame deformation exports.
	ordered := make([]IterationRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Frame != ordered[j].Frame {
			return ordered[i].Frame < ordered[j].Frame
		}
		return ordered[i].Iteration < ordered[j].Iteration
	})

	return &Result{
		Coregistered: coreg,
		ModelFit:     fit,
		Deformation:  acc.Fields(),
		Maps:         maps,
		Diagnostics:  ordered,
		Flagged:      flagged,
		Converged:    converged,
		Iterations:   iterations,
	}, nil
}
