package signal

import (
	"math"
	"sort"
	"testing"
)

func TestLookupKnownModels(t *testing.T) {
	for _, name := range []string{"monoexponential", "t1", "identity"} {
		t.Run(name, func(t *testing.T) {
			model, err := Lookup(name)
			if err != nil {
				t.Fatalf("Lookup(%q) failed: %v", name, err)
			}
			if len(model.ParamNames()) == 0 {
				t.Fatal("Model reports no parameters")
			}
		})
	}
}

func TestLookupUnknownModel(t *testing.T) {
	if _, err := Lookup("does-not-exist"); err == nil {
		t.Fatal("Expected an error for an unknown model name")
	}
}

func TestNamesAreSorted(t *testing.T) {
	names := Names()
	if len(names) < 3 {
		t.Fatalf("Expected at least 3 registered models, got %d", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("Names() not sorted: %v", names)
	}
}

func TestIdentityModel(t *testing.T) {
	model := &Identity{}
	curve := []float64{2, 4, 6}
	acq := []float64{0, 1, 2}

	coeffs, predicted, converged, err := model.Fit(curve, acq)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !converged {
		t.Fatal("Expected convergence")
	}
	if coeffs[0] != 4 {
		t.Errorf("Expected mean 4, got %g", coeffs[0])
	}
	for i, v := range predicted {
		if v != curve[i] {
			t.Errorf("Predicted[%d] = %g, want %g", i, v, curve[i])
		}
	}

	// The predicted curve must be a copy, not an alias.
	predicted[0] = -1
	if curve[0] != 2 {
		t.Error("Fit aliased its input curve")
	}
}

func TestFitContractViolations(t *testing.T) {
	models := map[string]Model{
		"monoexponential": &MonoExp{},
		"t1":              &T1Recovery{},
		"identity":        &Identity{},
	}
	for name, model := range models {
		t.Run(name, func(t *testing.T) {
			if _, _, _, err := model.Fit([]float64{1, 2, 3}, []float64{0, 1}); err == nil {
				t.Error("Expected an error for mismatched lengths")
			}
			if _, _, _, err := model.Fit(nil, nil); err == nil {
				t.Error("Expected an error for an empty curve")
			}
		})
	}
}

func TestZeroCurveYieldsSentinel(t *testing.T) {
	models := map[string]Model{
		"monoexponential": &MonoExp{},
		"t1":              &T1Recovery{},
	}
	curve := []float64{0, 0, 0, 0}
	acq := []float64{0, 100, 500, 900}

	for name, model := range models {
		t.Run(name, func(t *testing.T) {
			coeffs, predicted, converged, err := model.Fit(curve, acq)
			if err != nil {
				t.Fatalf("Fit returned a fatal error for a background pixel: %v", err)
			}
			if converged {
				t.Error("Expected a flagged (non-converged) fit")
			}
			for _, c := range coeffs {
				if c != 0 {
					t.Errorf("Expected zero sentinel coefficients, got %v", coeffs)
				}
			}
			for _, p := range predicted {
				if p != 0 {
					t.Errorf("Expected zero sentinel prediction, got %v", predicted)
				}
			}
		})
	}
}

func TestMonoExpRecoversParameters(t *testing.T) {
	// Noise-free mono-exponential decay must be recovered to high accuracy.
	const s0, adc = 150.0, 2.1e-3
	bValues := []float64{0, 100, 200, 300, 500, 700, 900}
	curve := make([]float64, len(bValues))
	for i, b := range bValues {
		curve[i] = s0 * math.Exp(-b*adc)
	}

	model := &MonoExp{}
	coeffs, predicted, converged, err := model.Fit(curve, bValues)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !converged {
		t.Fatal("Expected convergence on a clean curve")
	}
	if relDiff(coeffs[0], s0) > 1e-4 {
		t.Errorf("S0 = %g, want %g", coeffs[0], s0)
	}
	if relDiff(coeffs[1], adc) > 1e-4 {
		t.Errorf("ADC = %g, want %g", coeffs[1], adc)
	}
	for i := range curve {
		if relDiff(predicted[i], curve[i]) > 1e-3 {
			t.Errorf("Predicted[%d] = %g, want %g", i, predicted[i], curve[i])
		}
	}
}

func TestMonoExpDeterministic(t *testing.T) {
	bValues := []float64{0, 200, 400, 600, 800}
	curve := []float64{120, 80, 55, 38, 26}

	model := &MonoExp{}
	c1, p1, _, err := model.Fit(curve, bValues)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	c2, p2, _, err := model.Fit(curve, bValues)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for i := range c1 {
		if c1[i] != c2[i] {
			t.Errorf("Coefficient %d differs between identical fits: %g vs %g", i, c1[i], c2[i])
		}
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Errorf("Prediction %d differs between identical fits: %g vs %g", i, p1[i], p2[i])
		}
	}
}

func TestT1RecoversParameters(t *testing.T) {
	// Noise-free magnitude inversion recovery.
	const s0, t1 = 200.0, 800.0
	tis := []float64{100, 250, 400, 600, 900, 1300, 1800, 2500, 3200}
	curve := make([]float64, len(tis))
	for i, ti := range tis {
		curve[i] = math.Abs(s0 * (1 - 2*math.Exp(-ti/t1)))
	}

	model := &T1Recovery{}
	coeffs, predicted, converged, err := model.Fit(curve, tis)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !converged {
		t.Fatal("Expected convergence on a clean curve")
	}
	if relDiff(coeffs[0], s0) > 0.02 {
		t.Errorf("S0 = %g, want %g", coeffs[0], s0)
	}
	if relDiff(coeffs[1], t1) > 0.02 {
		t.Errorf("T1 = %g, want %g", coeffs[1], t1)
	}
	for i := range curve {
		if math.Abs(predicted[i]-curve[i]) > 0.02*s0 {
			t.Errorf("Predicted[%d] = %g, want %g", i, predicted[i], curve[i])
		}
	}
}

func relDiff(got, want float64) float64 {
	if want == 0 {
		return math.Abs(got)
	}
	return math.Abs(got-want) / math.Abs(want)
}
