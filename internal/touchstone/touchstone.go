// Package touchstone reads two-port Touchstone (.s2p) files, versions 1.x
// and 2.0.
package touchstone

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RMahshie/arpe/internal/resonator"
)

// Format is the number pair format of the data lines.
type Format string

const (
	RealImaginary  Format = "RI"
	MagnitudeAngle Format = "MA"
	DecibelAngle   Format = "DB"
)

const (
	valuesPerRecord  = 9
	defaultImpedance = 50.0
	maxLineBytes     = 1 << 20

	order21_12 = "21_12"
	order12_21 = "12_21"
)

var units = map[string]float64{
	"HZ":  1,
	"KHZ": 1e3,
	"MHZ": 1e6,
	"GHZ": 1e9,
}

// ParseError reports malformed or inconsistent input.
type ParseError struct {
	File string
	Line int // 0 when the error is not tied to a line
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// Network is a parsed two-port measurement. Frequencies are in Hz and
// strictly increasing.
type Network struct {
	Name      string
	Version   string // "1.0" unless a [Version] keyword says otherwise
	Unit      string
	Format    Format
	Impedance float64
	// Reordered is set when the file listed frequencies out of order.
	Reordered bool

	S11, S21, S12, S22 resonator.Trace
}

// Frequencies returns the shared frequency axis.
func (n *Network) Frequencies() []float64 { return n.S21.Freq }

// Len returns the number of frequency points.
func (n *Network) Len() int { return n.S21.Len() }

// ParseFile opens and parses the file at path. The network is named after
// the base name of the file.
func ParseFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open touchstone file: %w", err)
	}
	defer f.Close()
	return Parse(filepath.Base(path), f)
}

type record struct {
	line int
	freq float64
	s    [4]complex128 // file order
}

type parser struct {
	name string
	net  *Network

	optionLine  int
	scale       float64
	order       string
	declared    int // [Number of Frequencies], -1 if absent
	inData      bool
	v2          bool
	done        bool
	pending     []float64
	pendingLine int
	records     []record
}

// Parse reads a two-port Touchstone network from r.
func Parse(name string, r io.Reader) (*Network, error) {
	net := &Network{
		Name:      name,
		Version:   "1.0",
		Unit:      "GHZ",
		Format:    MagnitudeAngle,
		Impedance: defaultImpedance,
	}
	p := &parser{name: name, net: net, scale: units["GHZ"], order: order21_12, declared: -1}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for !p.done && sc.Scan() {
		line++
		if err := p.line(line, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{File: name, Line: line, Msg: err.Error()}
	}
	return p.finish()
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &ParseError{File: p.name, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) line(n int, text string) error {
	if i := strings.IndexByte(text, '!'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil
	case text[0] == '#':
		return p.option(n, text[1:])
	case text[0] == '[':
		return p.keyword(n, text)
	}
	if p.v2 && !p.inData {
		return p.errorf(n, "data before [Network Data]")
	}
	return p.data(n, text)
}

func (p *parser) option(n int, text string) error {
	if p.optionLine > 0 {
		return p.errorf(n, "second option line, first at line %d", p.optionLine)
	}
	if len(p.records) > 0 || len(p.pending) > 0 {
		return p.errorf(n, "option line after network data")
	}
	p.optionLine = n

	fields := strings.Fields(strings.ToUpper(text))
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if scale, ok := units[tok]; ok {
			p.net.Unit, p.scale = tok, scale
			continue
		}
		switch tok {
		case "S":
		case "Y", "Z", "H", "G":
			return p.errorf(n, "unsupported parameter type %q, only S is supported", tok)
		case string(RealImaginary), string(MagnitudeAngle), string(DecibelAngle):
			p.net.Format = Format(tok)
		case "R":
			if i+1 >= len(fields) {
				return p.errorf(n, "reference impedance missing after R")
			}
			z0, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil || !(z0 > 0) {
				return p.errorf(n, "invalid reference impedance %q", fields[i+1])
			}
			p.net.Impedance = z0
			i++
		default:
			return p.errorf(n, "unknown option %q", tok)
		}
	}
	return nil
}

func (p *parser) keyword(n int, text string) error {
	end := strings.IndexByte(text, ']')
	if end < 0 {
		return p.errorf(n, "unterminated keyword %q", text)
	}
	key := strings.ToUpper(strings.TrimSpace(text[1:end]))
	arg := strings.TrimSpace(text[end+1:])

	switch key {
	case "VERSION":
		if !strings.HasPrefix(arg, "2") {
			return p.errorf(n, "unsupported version %q", arg)
		}
		p.net.Version = arg
		p.v2 = true
	case "NUMBER OF PORTS":
		ports, err := strconv.Atoi(arg)
		if err != nil {
			return p.errorf(n, "invalid number of ports %q", arg)
		}
		if ports != 2 {
			return p.errorf(n, "%d-port network, expected 2", ports)
		}
	case "TWO-PORT DATA ORDER":
		switch arg {
		case order12_21, order21_12:
			p.order = arg
		default:
			return p.errorf(n, "invalid two-port data order %q", arg)
		}
	case "NUMBER OF FREQUENCIES":
		count, err := strconv.Atoi(arg)
		if err != nil || count < 0 {
			return p.errorf(n, "invalid number of frequencies %q", arg)
		}
		p.declared = count
	case "NETWORK DATA":
		p.inData = true
	case "END":
		if err := p.flushCheck(n); err != nil {
			return err
		}
		p.inData = false
		p.done = true
	case "NOISE DATA":
		// Noise parameters are not read.
		if err := p.flushCheck(n); err != nil {
			return err
		}
		p.done = true
	}
	return nil
}

func (p *parser) data(n int, text string) error {
	for _, tok := range strings.Fields(text) {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return p.errorf(n, "invalid number %q", tok)
		}
		if len(p.pending) == 0 {
			p.pendingLine = n
		}
		p.pending = append(p.pending, v)
		if len(p.pending) == valuesPerRecord {
			if err := p.record(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *parser) record() error {
	v := p.pending
	p.pending = p.pending[:0]

	freq := v[0] * p.scale
	if math.IsNaN(freq) || math.IsInf(freq, 0) || freq < 0 {
		return p.errorf(p.pendingLine, "invalid frequency %g", v[0])
	}
	rec := record{line: p.pendingLine, freq: freq}
	for k := 0; k < 4; k++ {
		rec.s[k] = p.value(v[1+2*k], v[2+2*k])
	}
	p.records = append(p.records, rec)
	return nil
}

func (p *parser) value(a, b float64) complex128 {
	switch p.net.Format {
	case RealImaginary:
		return complex(a, b)
	case DecibelAngle:
		return cmplx.Rect(math.Pow(10, a/20), b*math.Pi/180)
	default:
		return cmplx.Rect(a, b*math.Pi/180)
	}
}

func (p *parser) flushCheck(n int) error {
	if len(p.pending) > 0 {
		return p.errorf(p.pendingLine, "column count mismatch: record has %d of %d values", len(p.pending), valuesPerRecord)
	}
	return nil
}

func (p *parser) finish() (*Network, error) {
	if err := p.flushCheck(p.pendingLine); err != nil {
		return nil, err
	}
	if len(p.records) == 0 {
		return nil, &ParseError{File: p.name, Msg: "no network data"}
	}
	if p.declared >= 0 && p.declared != len(p.records) {
		return nil, &ParseError{File: p.name, Msg: fmt.Sprintf("[Number of Frequencies] is %d, found %d", p.declared, len(p.records))}
	}

	recs := p.records
	if !sort.SliceIsSorted(recs, func(i, j int) bool { return recs[i].freq < recs[j].freq }) {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].freq < recs[j].freq })
		p.net.Reordered = true
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].freq == recs[i-1].freq {
			first, second := recs[i-1].line, recs[i].line
			if first > second {
				first, second = second, first
			}
			return nil, p.errorf(second, "duplicate frequency %g Hz, first at line %d", recs[i].freq, first)
		}
	}

	// v1 and 21_12 list S11 S21 S12 S22; 12_21 lists S11 S12 S21 S22.
	i21, i12 := 1, 2
	if p.order == order12_21 {
		i21, i12 = 2, 1
	}
	freq := make([]float64, len(recs))
	s := [4][]complex128{}
	for k := range s {
		s[k] = make([]complex128, len(recs))
	}
	for i, rec := range recs {
		freq[i] = rec.freq
		s[0][i] = rec.s[0]
		s[1][i] = rec.s[i21]
		s[2][i] = rec.s[i12]
		s[3][i] = rec.s[3]
	}

	net := p.net
	net.S11 = resonator.Trace{Port: resonator.PortS11, Freq: freq, Data: s[0]}
	net.S21 = resonator.Trace{Port: resonator.PortS21, Freq: freq, Data: s[1]}
	net.S12 = resonator.Trace{Port: resonator.PortS12, Freq: freq, Data: s[2]}
	net.S22 = resonator.Trace{Port: resonator.PortS22, Freq: freq, Data: s[3]}
	return net, nil
}
