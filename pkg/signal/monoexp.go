package signal

import (
	"math"

	"github.com/maorshutman/lm"
)

// MonoExp is the mono-exponential diffusion decay model used for
// DWI/IVIM series:
//
//	S(b) = S0 * exp(-b * ADC)
//
// with per-frame b-values as acquisition parameters. Fitted coefficients
// are S0 (signal at b=0) and ADC (apparent diffusion coefficient).
type MonoExp struct{}

// ParamNames implements Model.
func (m *MonoExp) ParamNames() []string {
	return []string{"S0", "ADC"}
}

// Fit implements Model.
func (m *MonoExp) Fit(curve, acq []float64) (coeffs, predicted []float64, converged bool, err error) {
	if err := checkLengths("monoexponential", curve, acq); err != nil {
		return nil, nil, false, err
	}

	// Background pixels outside anatomy carry no signal to fit; they are
	// fit anyway per contract and come back flagged.
	peak := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		coeffs, predicted = sentinel(2, len(curve))
		return coeffs, predicted, false, nil
	}

	x, fitErr := fitMonoExpLM(curve, acq, peak)
	if fitErr != nil {
		coeffs, predicted = sentinel(2, len(curve))
		return coeffs, predicted, false, nil
	}

	predicted = make([]float64, len(curve))
	for i, b := range acq {
		predicted[i] = x[0] * math.Exp(-b*x[1])
		if !isFinite(predicted[i]) {
			coeffs, predicted = sentinel(2, len(curve))
			return coeffs, predicted, false, nil
		}
	}
	return x, predicted, true, nil
}

// fitMonoExpLM runs the Levenberg-Marquardt fit. The lm package panics on
// singular normal equations, so the panic is recovered into a
// ModelFitError and the caller substitutes the sentinel.
func fitMonoExpLM(curve, acq []float64, peak float64) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x = nil
			err = &ModelFitError{Model: "monoexponential", Reason: "singular system in LM solver"}
		}
	}()

	residuals := func(dst, p []float64) {
		for i, b := range acq {
			dst[i] = p[0]*math.Exp(-b*p[1]) - curve[i]
		}
	}
	jac := lm.NumJac{Func: residuals}

	problem := lm.LMProblem{
		Dim:        2,
		Size:       len(curve),
		Func:       residuals,
		Jac:        jac.Jac,
		InitParams: []float64{peak, 1e-3},
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	res, lmErr := lm.LM(problem, &lm.Settings{Iterations: 500, ObjectiveTol: 1e-14})
	if lmErr != nil {
		return nil, &ModelFitError{Model: "monoexponential", Reason: lmErr.Error()}
	}
	if !isFinite(res.X[0]) || !isFinite(res.X[1]) {
		return nil, &ModelFitError{Model: "monoexponential", Reason: "non-finite coefficients"}
	}
	return res.X, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
