package signal

import (
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/optimize"
)

// T1Recovery is the inversion-recovery model used for T1 mapping series:
//
//	S(TI) = | S0 * (1 - 2*exp(-TI/T1)) |
//
// with per-frame inversion times as acquisition parameters. Magnitude
// images lose the sign of the recovering signal, hence the absolute
// value. Fitted coefficients are S0 and T1.
type T1Recovery struct{}

// ParamNames implements Model.
func (m *T1Recovery) ParamNames() []string {
	return []string{"S0", "T1"}
}

// Fit implements Model. Levenberg-Marquardt is tried first; when it
// diverges (the magnitude kink makes the residual landscape awkward near
// the null point) the fit is retried with Nelder-Mead on the summed
// squared residuals.
func (m *T1Recovery) Fit(curve, acq []float64) (coeffs, predicted []float64, converged bool, err error) {
	if err := checkLengths("t1", curve, acq); err != nil {
		return nil, nil, false, err
	}

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

	init := []float64{peak, initialT1(curve, acq)}

	x, fitErr := fitT1LM(curve, acq, init)
	if fitErr != nil {
		x, fitErr = fitT1NelderMead(curve, acq, init)
	}
	if fitErr != nil {
		coeffs, predicted = sentinel(2, len(curve))
		return coeffs, predicted, false, nil
	}

	predicted = make([]float64, len(curve))
	for i, ti := range acq {
		predicted[i] = t1Signal(x, ti)
		if !isFinite(predicted[i]) {
			coeffs, predicted = sentinel(2, len(curve))
			return coeffs, predicted, false, nil
		}
	}
	return x, predicted, true, nil
}

func t1Signal(p []float64, ti float64) float64 {
	t1 := p[1]
	if math.Abs(t1) < 1e-9 {
		t1 = 1e-9
	}
	return math.Abs(p[0] * (1 - 2*math.Exp(-ti/t1)))
}

// initialT1 seeds T1 from the null point: the signal minimum sits near
// TI = T1 * ln 2.
func initialT1(curve, acq []float64) float64 {
	minVal := math.Inf(1)
	tiNull := 0.0
	for i, v := range curve {
		if v < minVal {
			minVal = v
			tiNull = acq[i]
		}
	}
	t1 := tiNull / math.Ln2
	if t1 <= 0 {
		// No usable null point; fall back to the mean inversion time.
		sum := 0.0
		for _, ti := range acq {
			sum += ti
		}
		t1 = sum / float64(len(acq))
		if t1 <= 0 {
			t1 = 1
		}
	}
	return t1
}

func fitT1LM(curve, acq, init []float64) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x = nil
			err = &ModelFitError{Model: "t1", Reason: "singular system in LM solver"}
		}
	}()

	residuals := func(dst, p []float64) {
		for i, ti := range acq {
			dst[i] = t1Signal(p, ti) - curve[i]
		}
	}
	jac := lm.NumJac{Func: residuals}

	problem := lm.LMProblem{
		Dim:        2,
		Size:       len(curve),
		Func:       residuals,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	res, lmErr := lm.LM(problem, &lm.Settings{Iterations: 500, ObjectiveTol: 1e-14})
	if lmErr != nil {
		return nil, &ModelFitError{Model: "t1", Reason: lmErr.Error()}
	}
	if !isFinite(res.X[0]) || !isFinite(res.X[1]) {
		return nil, &ModelFitError{Model: "t1", Reason: "non-finite coefficients"}
	}
	return res.X, nil
}

func fitT1NelderMead(curve, acq, init []float64) ([]float64, error) {
	chiSq := func(p []float64) float64 {
		sum := 0.0
		for i, ti := range acq {
			d := t1Signal(p, ti) - curve[i]
			sum += d * d
		}
		return sum
	}

	problem := optimize.Problem{Func: chiSq}
	start := make([]float64, len(init))
	copy(start, init)

	res, err := optimize.Minimize(problem, start, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, &ModelFitError{Model: "t1", Reason: err.Error()}
	}
	if !isFinite(res.X[0]) || !isFinite(res.X[1]) || !isFinite(res.F) {
		return nil, &ModelFitError{Model: "t1", Reason: "non-finite Nelder-Mead result"}
	}
	return res.X, nil
}
