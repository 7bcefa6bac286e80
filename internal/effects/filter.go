package effects

import (
	"math"
	"strings"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

// CoeffScale is the fixed-point multiplier applied to biquad coefficients.
const CoeffScale = 1 << 16

// MaxFilterChannels bounds the per-channel history.
const MaxFilterChannels = 16

// FilterClass selects the biquad topology.
type FilterClass int

const (
	LowPass FilterClass = iota
	HighPass
	BandPass
	BandNotch
)

func (c FilterClass) String() string {
	switch c {
	case LowPass:
		return "Low pass"
	case HighPass:
		return "High pass"
	case BandPass:
		return "Band pass"
	case BandNotch:
		return "Band notch"
	}
	return "Unknown"
}

// ParseFilterClass accepts a class name with or without the space, such as
// "lowpass" or "Band notch".
func ParseFilterClass(s string) (FilterClass, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
	for c := LowPass; c <= BandNotch; c++ {
		if strings.ReplaceAll(strings.ToLower(c.String()), " ", "") == name {
			return c, nil
		}
	}
	return 0, qerr.Errorf(qerr.InvalidParameter, "parse filter class", "unknown class %q", s)
}

const (
	filterFreq = iota
	filterQ
	filterGain
	filterClass
)

var filterParams = []Param{
	{Name: "Freq", Label: "Hz", Default: 300, Min: 1, Max: 96000},
	{Name: "Q", Label: "", Default: 1, Min: 0.01, Max: 100},
	{Name: "Gain", Label: "dB", Default: 1, Min: -48, Max: 48},
	{Name: "Class", Label: "", Default: float64(BandNotch), Min: 0, Max: float64(BandNotch)},
}

// Coeffs are biquad coefficients scaled by CoeffScale. The a terms feed the
// input history, the b terms the output history.
type Coeffs struct {
	A0, A1, A2 int64
	B1, B2     int64
}

type biquadState struct {
	i1, i2 int64
	o1, o2 int64
}

// Filter is a fixed-point biquad with one history per channel.
type Filter struct {
	core
	coeffs Coeffs
	hist   [MaxFilterChannels]biquadState
}

func NewFilter(sampleRate, channels int) *Filter {
	f := &Filter{core: newCore(sampleRate, channels, filterParams)}
	f.update()
	return f
}

func (f *Filter) Name() string { return "Filter" }
func (f *Filter) ShortName() string { return "filter" }

func (f *Filter) Clone() Effector {
	c := &Filter{core: f.core.clone()}
	c.update()
	return c
}

func (f *Filter) Init() error {
	if f.channels <= 0 || f.channels > MaxFilterChannels {
		return qerr.Errorf(qerr.OutOfRange, "filter init", "%d channels, max %d", f.channels, MaxFilterChannels)
	}
	f.update()
	f.bypass = false
	f.Reset()
	return nil
}

func (f *Filter) Reset() {
	f.hist = [MaxFilterChannels]biquadState{}
}

func (f *Filter) SetParam(i int, v float64) error {
	if i == filterClass {
		v = math.Round(v)
	}
	if err := f.setValue(i, v); err != nil {
		return err
	}
	f.update()
	return nil
}

func (f *Filter) Display(i int) string {
	if i == filterClass {
		return f.Class().String()
	}
	return f.core.Display(i)
}

func (f *Filter) Class() FilterClass { return FilterClass(f.values[filterClass]) }

// Coeffs returns the scaled coefficients in use.
func (f *Filter) Coeffs() Coeffs { return f.coeffs }

func (f *Filter) update() {
	f.coeffs = BiquadCoeffs(f.Class(), float64(f.rate), f.values[filterFreq], f.values[filterQ])
}

// BiquadCoeffs derives bilinear-transform coefficients for class at cutoff
// cf and quality q.
func BiquadCoeffs(class FilterClass, rate, cf, q float64) Coeffs {
	var a0, a1, a2, b1, b2 float64
	switch class {
	case LowPass:
		c := 1 / math.Tan(math.Pi*cf/rate)
		a0 = 1 / (1 + math.Sqrt2*c + c*c)
		a1 = 2 * a0
		a2 = a0
		b1 = 2 * a0 * (1 - c*c)
		b2 = a0 * (1 - math.Sqrt2*c + c*c)
	case HighPass:
		c := math.Tan(math.Pi * cf / rate)
		a0 = 1 / (1 + math.Sqrt2*c + c*c)
		a1 = -2 * a0
		a2 = a0
		b1 = 2 * a0 * (c*c - 1)
		b2 = a0 * (1 - math.Sqrt2*c + c*c)
	case BandPass:
		bw := cf / q
		c := 1 / math.Tan(math.Pi*bw/rate)
		d := 2 * math.Cos(2*math.Pi*cf/rate)
		a0 = 1 / (1 + c)
		a1 = 0
		a2 = -a0
		b1 = -a0 * c * d
		b2 = a0 * (c - 1)
	case BandNotch:
		bw := cf / q
		c := math.Tan(math.Pi * bw / rate)
		d := 2 * math.Cos(2*math.Pi*cf/rate)
		a0 = 1 / (1 + c)
		a1 = -a0 * d
		a2 = a0
		b1 = -a0 * d
		b2 = a0 * (1 - c)
	}
	scale := func(v float64) int64 { return int64(math.Round(v * CoeffScale)) }
	return Coeffs{A0: scale(a0), A1: scale(a1), A2: scale(a2), B1: scale(b1), B2: scale(b2)}
}

func (f *Filter) Process(buf []int32, frames int) error {
	if f.bypass {
		return nil
	}
	if f.channels > MaxFilterChannels {
		return qerr.Errorf(qerr.OutOfRange, "filter", "%d channels", f.channels)
	}
	if _, err := f.frameSpan("filter", buf, frames); err != nil {
		return err
	}
	k := f.coeffs
	ch := f.channels
	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			h := &f.hist[c]
			i0 := int64(buf[fr*ch+c])
			o0 := (k.A0*i0 + k.A1*h.i1 + k.A2*h.i2 - k.B2*h.o2 - k.B1*h.o1) / CoeffScale
			out := clip32(o0)
			h.i2, h.i1 = h.i1, i0
			h.o2, h.o1 = h.o1, int64(out)
			buf[fr*ch+c] = out
		}
	}
	return nil
}
