package signal

// Identity predicts each pixel curve verbatim and reports its mean as the
// single fitted coefficient. It serves constant-signal sequences where no
// parametric model applies and the registration target is the signal
// itself.
type Identity struct{}

// ParamNames implements Model.
func (m *Identity) ParamNames() []string {
	return []string{"Mean"}
}

// Fit implements Model.
func (m *Identity) Fit(curve, acq []float64) (coeffs, predicted []float64, converged bool, err error) {
	if err := checkLengths("identity", curve, acq); err != nil {
		return nil, nil, false, err
	}
	sum := 0.0
	predicted = make([]float64, len(curve))
	for i, v := range curve {
		predicted[i] = v
		sum += v
	}
	return []float64{sum / float64(len(curve))}, predicted, true, nil
}
