package touchstone

import (
	"errors"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/arpe/internal/resonator"
	"github.com/RMahshie/arpe/internal/testutil"
)

func TestParse_Formats(t *testing.T) {
	want := complex(0.3, -0.4) // |0.5|, -53.13 deg
	deg := cmplx.Phase(want) * 180 / math.Pi
	db := 20 * math.Log10(cmplx.Abs(want))

	tests := []struct {
		name   string
		header string
		pair   string
		format Format
	}{
		{"real imaginary", "# GHz S RI R 50", "0.3 -0.4", RealImaginary},
		{"magnitude angle", "# GHZ S MA R 50", "0.5 " + ftoa(deg), MagnitudeAngle},
		{"decibel angle", "# ghz s db r 50", ftoa(db) + " " + ftoa(deg), DecibelAngle},
		{"default format is MA", "# GHZ", "0.5 " + ftoa(deg), MagnitudeAngle},
		{"no option line", "", "0.5 " + ftoa(deg), MagnitudeAngle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			b.WriteString(tt.header + "\n")
			for _, f := range []string{"1", "1.5", "2"} {
				b.WriteString(f + " " + strings.Repeat(tt.pair+" ", 4) + "\n")
			}

			net, err := Parse("test.s2p", strings.NewReader(b.String()))
			require.NoError(t, err)
			assert.Equal(t, tt.format, net.Format)
			assert.Equal(t, []float64{1e9, 1.5e9, 2e9}, net.Frequencies())
			for _, tr := range []resonator.Trace{net.S11, net.S21, net.S12, net.S22} {
				for _, v := range tr.Data {
					assert.InDelta(t, 0, cmplx.Abs(v-want), 1e-12)
				}
			}
		})
	}
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func TestParse_Units(t *testing.T) {
	tests := []struct {
		unit  string
		scale float64
	}{
		{"HZ", 1},
		{"KHZ", 1e3},
		{"MHz", 1e6},
		{"GHZ", 1e9},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			src := "# " + tt.unit + " S RI R 75\n2 1 0 0 0 0 0 1 0\n3 1 0 0 0 0 0 1 0\n"
			net, err := Parse("u.s2p", strings.NewReader(src))
			require.NoError(t, err)
			assert.Equal(t, []float64{2 * tt.scale, 3 * tt.scale}, net.Frequencies())
			assert.Equal(t, 75.0, net.Impedance)
			assert.Equal(t, strings.ToUpper(tt.unit), net.Unit)
		})
	}
}

func TestParse_PortOrder(t *testing.T) {
	line := "1 11 0 21 0 12 0 22 0\n"

	v1, err := Parse("v1.s2p", strings.NewReader("# HZ S RI\n"+line))
	require.NoError(t, err)
	assert.Equal(t, complex(21, 0), v1.S21.Data[0])
	assert.Equal(t, complex(12, 0), v1.S12.Data[0])

	v2src := strings.Join([]string{
		"[Version] 2.0",
		"# HZ S RI R 50",
		"[Number of Ports] 2",
		"[Two-Port Data Order] 12_21",
		"[Number of Frequencies] 1",
		"[Network Data]",
		strings.TrimSpace(line),
		"[End]",
		"this is ignored",
	}, "\n")
	v2, err := Parse("v2.s2p", strings.NewReader(v2src))
	require.NoError(t, err)
	assert.Equal(t, "2.0", v2.Version)
	assert.Equal(t, complex(21, 0), v2.S12.Data[0])
	assert.Equal(t, complex(12, 0), v2.S21.Data[0])
	assert.Equal(t, complex(11, 0), v2.S11.Data[0])
	assert.Equal(t, complex(22, 0), v2.S22.Data[0])
	assert.Equal(t, resonator.PortS21, v2.S21.Port)
}

func TestParse_WrappedAndReordered(t *testing.T) {
	src := `! measured on a bench
# MHZ S RI R 50
3 0.1 0.2 0.3 0.4
  0.5 0.6 0.7 0.8 ! wrapped record
1 1 1 1 1 1 1 1 1
2 2 2 2 2 2 2 2 2
`
	net, err := Parse("w.s2p", strings.NewReader(src))
	require.NoError(t, err)
	assert.True(t, net.Reordered)
	assert.Equal(t, []float64{1e6, 2e6, 3e6}, net.Frequencies())
	assert.Equal(t, complex(0.3, 0.4), net.S21.Data[2])
	assert.Equal(t, complex(2, 2), net.S22.Data[1])
	assert.Equal(t, 3, net.Len())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
		wantMsg  string
	}{
		{"empty", "", 0, "no network data"},
		{"comments only", "! nothing\n# GHZ S RI R 50\n", 0, "no network data"},
		{"unknown option", "# GHZ S XX R 50\n1 0 0 0 0 0 0 0 0\n", 1, "unknown option"},
		{"impedance parameters", "# GHZ Z RI R 50\n", 1, "unsupported parameter"},
		{"missing impedance", "# GHZ S RI R\n", 1, "reference impedance missing"},
		{"second option line", "# GHZ S RI\n# MHZ S RI\n", 2, "second option line"},
		{"option line after data", "1 0 0 0 0 0 0 0 0\n# GHZ S RI R 50\n2 0 0 0 0 0 0 0 0\n", 2, "option line after network data"},
		{"option line mid record", "1 0 0 0 0\n# GHZ S RI\n0 0 0 0\n", 2, "option line after network data"},
		{"column mismatch", "# HZ S RI\n1 0 0 0 0 0 0 0 0\n2 0 0 0 0\n", 3, "column count mismatch"},
		{"not a number", "# HZ S RI\n1 0 0 0 x 0 0 0 0\n", 2, "invalid number"},
		{"duplicate frequency", "# HZ S RI\n1 0 0 0 0 0 0 0 0\n2 0 0 0 0 0 0 0 0\n1 1 0 0 0 0 0 0 0\n", 4, "duplicate frequency"},
		{"negative frequency", "# HZ S RI\n-1 0 0 0 0 0 0 0 0\n", 2, "invalid frequency"},
		{"four ports", "[Version] 2.0\n[Number of Ports] 4\n", 2, "4-port"},
		{"bad data order", "[Version] 2.0\n[Two-Port Data Order] 11_22\n", 2, "two-port data order"},
		{"data before network data", "[Version] 2.0\n# HZ S RI\n1 0 0 0 0 0 0 0 0\n", 3, "data before [Network Data]"},
		{"frequency count", "[Version] 2.0\n# HZ S RI\n[Number of Frequencies] 2\n[Network Data]\n1 0 0 0 0 0 0 0 0\n[End]\n", 0, "found 1"},
		{"truncated before end", "[Version] 2.0\n[Network Data]\n1 0 0 0\n[End]\n", 3, "column count mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.s2p", strings.NewReader(tt.src))
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, "bad.s2p", pe.File)
			assert.Equal(t, tt.wantLine, pe.Line)
			assert.Contains(t, pe.Msg, tt.wantMsg)
		})
	}
}

func TestParseFile(t *testing.T) {
	r := testutil.Default()
	path := filepath.Join(t.TempDir(), "resonator.s2p")
	require.NoError(t, os.WriteFile(path, []byte(r.Touchstone()), 0o644))

	net, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "resonator.s2p", net.Name)
	assert.Equal(t, RealImaginary, net.Format)

	s11, s21, s22 := r.Traces()
	opt := cmpopts.EquateApprox(0, 1e-15)
	assert.Empty(t, cmp.Diff(s21.Freq, net.S21.Freq, opt))
	assert.Empty(t, cmp.Diff(s21.Data, net.S21.Data, cmpComplex))
	assert.Empty(t, cmp.Diff(s11.Data, net.S11.Data, cmpComplex))
	assert.Empty(t, cmp.Diff(s22.Data, net.S22.Data, cmpComplex))

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.s2p"))
	assert.Error(t, err)
}

var cmpComplex = cmp.Comparer(func(a, b complex128) bool {
	return cmplx.Abs(a-b) <= 1e-15*math.Max(1, cmplx.Abs(b))
})
