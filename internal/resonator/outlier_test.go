package resonator_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/arpe/internal/resonator"
	"github.com/RMahshie/arpe/internal/testutil"
)

func allRetained(t *testing.T, ft resonator.FilteredTrace) {
	t.Helper()
	for i, keep := range ft.Mask {
		require.True(t, keep, "point %d rejected", i)
	}
}

func TestFilterOutliers_Clean(t *testing.T) {
	_, s21, _ := testutil.Default().Traces()

	ft, fit, report, err := resonator.FilterOutliers(s21, resonator.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, report.Converged)
	assert.Equal(t, 1, report.Iterations)
	assert.Zero(t, report.Rejected)
	allRetained(t, ft)
	assert.InDelta(t, testutil.Default().Kappa()/2, fit.Radius, 1e-12)
}

func TestFilterOutliers_RejectsOutliers(t *testing.T) {
	_, s21, _ := testutil.Default().Traces()
	bad := []int{50, 200, 330, 470, 720}
	dirty := testutil.WithOutliers(s21, complex(0.1, 0.1), bad...)

	ft, fit, report, err := resonator.FilterOutliers(dirty, resonator.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, report.Converged)
	assert.Equal(t, len(bad), report.Rejected)
	for _, i := range bad {
		assert.False(t, ft.Mask[i], "outlier %d retained", i)
	}
	assert.Equal(t, s21.Len()-len(bad), ft.Retained())
	assert.InDelta(t, testutil.Default().Kappa()/2, fit.Radius, 1e-9)
}

func TestFilterOutliers_Idempotent(t *testing.T) {
	_, s21, _ := testutil.Default().Traces()
	dirty := testutil.WithOutliers(s21, complex(-0.05, 0.08), 10, 120, 600)
	opts := resonator.DefaultOptions()

	first, fit1, _, err := resonator.FilterOutliers(dirty, opts)
	require.NoError(t, err)

	second, fit2, report, err := resonator.FilterOutliers(first.Compact(), opts)
	require.NoError(t, err)
	assert.True(t, report.Converged)
	assert.Zero(t, report.Rejected)
	assert.Equal(t, first.Retained(), second.Retained())
	assert.InDelta(t, fit1.Radius, fit2.Radius, 1e-12)
}

func TestFilterOutliers_NonFinite(t *testing.T) {
	_, s21, _ := testutil.Default().Traces()
	data := append([]complex128(nil), s21.Data...)
	data[3] = complex(math.NaN(), 0)
	data[700] = complex(math.Inf(1), 1)
	tr := resonator.Trace{Port: s21.Port, Freq: s21.Freq, Data: data}

	ft, _, report, err := resonator.FilterOutliers(tr, resonator.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, report.Converged)
	assert.False(t, ft.Mask[3])
	assert.False(t, ft.Mask[700])
	assert.Zero(t, report.Rejected)
	assert.Equal(t, tr.Len()-2, ft.Retained())
}

func TestFilterOutliers_MinimumSupport(t *testing.T) {
	_, s21, _ := testutil.Default().Traces()
	bad := []int{100, 200, 300, 500, 600, 700}
	dirty := testutil.WithOutliers(s21, complex(0.1, 0.1), bad...)

	opts := resonator.DefaultOptions()
	opts.MinFitPoints = s21.Len() - 2

	ft, _, report, err := resonator.FilterOutliers(dirty, opts)
	require.NoError(t, err)
	assert.True(t, report.MinSupportStop)
	assert.False(t, report.Converged)
	// The pre-drop mask is returned.
	allRetained(t, ft)
}

func TestFilterOutliers_TooFewPoints(t *testing.T) {
	tests := []struct {
		name string
		tr   resonator.Trace
		want error
	}{
		{
			name: "two points",
			tr:   resonator.Trace{Port: resonator.PortS11, Freq: []float64{1, 2}, Data: []complex128{1, 2}},
			want: resonator.ErrTooFewPoints,
		},
		{
			name: "mostly NaN",
			tr: resonator.Trace{
				Port: resonator.PortS11,
				Freq: []float64{1, 2, 3, 4, 5, 6},
				Data: []complex128{1, complex(math.NaN(), 0), 1i, -1, complex(math.NaN(), 0), complex(math.NaN(), 0)},
			},
			want: resonator.ErrTooFewPoints,
		},
		{
			name: "collinear",
			tr: resonator.Trace{
				Port: resonator.PortS11,
				Freq: []float64{1, 2, 3, 4, 5, 6},
				Data: []complex128{0, 1, 2, 3, 4, 5},
			},
			want: resonator.ErrCollinear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := resonator.FilterOutliers(tt.tr, resonator.DefaultOptions())
			var fitErr *resonator.FitError
			require.True(t, errors.As(err, &fitErr), "got %v", err)
			assert.Equal(t, resonator.PortS11, fitErr.Port)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}
