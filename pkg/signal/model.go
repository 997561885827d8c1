// Package signal provides the per-pixel quantitative signal models used by
// model-driven registration: mono-exponential diffusion decay, T1 recovery
// and an identity model for constant sequences. Models are looked up by
// name in a registry, resolved once at startup by the caller.
//
// Fitting uses Levenberg-Marquardt least squares with a numerical
// Jacobian; the T1 model falls back to Nelder-Mead when LM diverges. A fit
// that fails numerically yields zero-valued sentinel coefficients and a
// converged=false flag rather than an error: a single bad pixel (noise,
// background outside anatomy) must never abort a whole registration run.
package signal

import (
	"fmt"
	"sort"
)

// Model is a per-pixel quantitative signal model. Fit receives the
// time-ordered intensity curve at one pixel and the matching acquisition
// parameters (b-values, inversion times) and returns the fitted
// coefficients and the model-predicted curve. Implementations are pure
// functions of their inputs and safe for concurrent use.
type Model interface {
	// ParamNames lists the fitted parameters in coefficient order.
	ParamNames() []string

	// Fit fits one pixel curve. converged=false marks a sentinel result.
	// A non-nil error means the inputs violate the contract (length
	// mismatch), never a numerical failure.
	Fit(curve, acq []float64) (coeffs, predicted []float64, converged bool, err error)
}

// ModelFitError reports a numerical fit failure (non-convergence, singular
// Jacobian). It is consumed inside the adapters: the pixel gets sentinel
// output and the run continues.
type ModelFitError struct {
	Model  string
	Reason string
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("%s fit failed: %s", e.Model, e.Reason)
}

var registry = map[string]func() Model{}

// Register adds a model factory under the given name. Registering a
// duplicate name panics; it indicates a programming error at init time.
func Register(name string, factory func() Model) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("signal: duplicate model registration %q", name))
	}
	registry[name] = factory
}

// Lookup resolves a model by name.
func Lookup(name string) (Model, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown signal model %q (available: %v)", name, Names())
	}
	return factory(), nil
}

// Names returns the registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("monoexponential", func() Model { return &MonoExp{} })
	Register("t1", func() Model { return &T1Recovery{} })
	Register("identity", func() Model { return &Identity{} })
}

// checkLengths validates the shared Fit contract.
func checkLengths(model string, curve, acq []float64) error {
	if len(curve) != len(acq) {
		return fmt.Errorf("%s: curve has %d samples, acquisition parameters have %d", model, len(curve), len(acq))
	}
	if len(curve) == 0 {
		return fmt.Errorf("%s: empty curve", model)
	}
	return nil
}

// sentinel returns the zero-valued flagged output for a failed fit.
func sentinel(nParams, nSamples int) (coeffs, predicted []float64) {
	return make([]float64, nParams), make([]float64, nSamples)
}
