package effects

import "math"

const (
	ampGain = iota
	ampLine
)

var ampParams = []Param{
	{Name: "Gain", Label: "dB", Default: 0, Min: -10000, Max: 10000},
	{Name: "Line", Label: "%", Default: 100, Min: 0, Max: 1000},
}

// Amplifier pushes samples away from zero by a fixed offset, then scales
// them by a line percentage. Both stages saturate.
type Amplifier struct {
	core
	gainSmpl int64
	line     int64
}

func NewAmplifier(sampleRate, channels int) *Amplifier {
	a := &Amplifier{core: newCore(sampleRate, channels, ampParams)}
	a.update()
	return a
}

func (a *Amplifier) Name() string { return "Amplifier" }
func (a *Amplifier) ShortName() string { return "amp" }

func (a *Amplifier) Clone() Effector {
	c := &Amplifier{core: a.core.clone()}
	c.update()
	return c
}

func (a *Amplifier) Init() error {
	a.update()
	a.bypass = false
	return nil
}

func (a *Amplifier) Reset() {}

func (a *Amplifier) SetParam(i int, v float64) error {
	if err := a.setValue(i, v); err != nil {
		return err
	}
	a.update()
	return nil
}

func (a *Amplifier) update() {
	g := a.values[ampGain] * (math.MaxInt32 / 10000)
	g = math.Max(-math.MaxInt32, math.Min(math.MaxInt32, g))
	a.gainSmpl = int64(g)
	a.line = int64(a.values[ampLine])
}

func (a *Amplifier) Process(buf []int32, frames int) error {
	if a.bypass {
		return nil
	}
	n, err := a.frameSpan("amp", buf, frames)
	if err != nil {
		return err
	}
	for i, s := range buf[:n] {
		v := int64(s)
		if v > 0 {
			v += a.gainSmpl
		} else {
			v -= a.gainSmpl
		}
		v = int64(clip32(v))
		buf[i] = clip32(v * a.line / 100)
	}
	return nil
}
