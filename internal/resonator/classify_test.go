package resonator_test

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/arpe/internal/resonator"
	"github.com/RMahshie/arpe/internal/testutil"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		fanoQ     float64
		wantKind  resonator.ModelKind
		wantAlpha float64
	}{
		{"lorentzian", 0, resonator.Symmetric, 0},
		{"fano q=2", 2, resonator.Asymmetric, -0.8},
		{"fano q=-2", -2, resonator.Asymmetric, 0.8},
		{"weak fano", 40, resonator.Symmetric, -80.0 / 1601},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.Default()
			r.FanoQ = tt.fanoQ
			ft, fit, res, err := locate(t, traceOf(r, 1))
			require.NoError(t, err)

			model, asym := resonator.Classify(ft, fit, res, resonator.DefaultOptions())
			assert.Equal(t, tt.wantKind, model.Kind)
			assert.InDelta(t, tt.wantAlpha, asym.Alpha, 1e-6)

			params := model.Params()
			assert.Less(t, testutil.RelErr(params.ResonantFrequency, r.F0), 1e-7)
			assert.Less(t, testutil.RelErr(params.LoadedQ, r.LoadedQ()), 1e-4)
			assert.InDelta(t, r.Kappa(), params.Amplitude, 1e-6)

			switch tt.wantKind {
			case resonator.Symmetric:
				require.NotNil(t, model.Lorentzian)
				assert.Nil(t, model.Fano)
			case resonator.Asymmetric:
				require.NotNil(t, model.Fano)
				assert.Nil(t, model.Lorentzian)
				assert.InDelta(t, tt.fanoQ, model.Fano.Q, 1e-4)
				assert.InDelta(t, 0, cmplx.Abs(model.Fano.Background-r.Background()), 1e-6)
				assert.NotZero(t, asym.Skew)
			}
		})
	}
}

func TestClassify_Reflection(t *testing.T) {
	ft, fit, res, err := locate(t, traceOf(testutil.Default(), 0))
	require.NoError(t, err)

	model, asym := resonator.Classify(ft, fit, res, resonator.DefaultOptions())
	assert.Equal(t, resonator.Symmetric, model.Kind)
	assert.InDelta(t, 0, asym.Alpha, 1e-9)
	assert.InDelta(t, 0, asym.Skew, 1e-9)
}

func TestClassify_Deterministic(t *testing.T) {
	r := testutil.Default()
	r.FanoQ = 3
	ft, fit, res, err := locate(t, traceOf(r, 1))
	require.NoError(t, err)

	m1, a1 := resonator.Classify(ft, fit, res, resonator.DefaultOptions())
	m2, a2 := resonator.Classify(ft, fit, res, resonator.DefaultOptions())
	assert.Equal(t, m1, m2)
	assert.Equal(t, a1, a2)
}

func TestClassify_Noisy(t *testing.T) {
	tests := []struct {
		name     string
		fanoQ    float64
		noise    float64
		wantKind resonator.ModelKind
	}{
		{"lorentzian low noise", 0, 1e-3, resonator.Symmetric},
		{"lorentzian moderate noise", 0, 5e-3, resonator.Symmetric},
		{"fano low noise", 2, 1e-3, resonator.Asymmetric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.Default()
			r.FanoQ = tt.fanoQ
			r.Noise, r.Seed = tt.noise, 5
			ft, fit, res, err := locate(t, traceOf(r, 1))
			require.NoError(t, err)

			model, asym := resonator.Classify(ft, fit, res, resonator.DefaultOptions())
			assert.Equal(t, tt.wantKind, model.Kind, "alpha %g", asym.Alpha)
		})
	}
}
