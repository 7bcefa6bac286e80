package effects

var inverterParams = []Param{
	{Name: "Invert", Label: "", Default: 0.5, Min: 0, Max: 1},
}

// Inverter swaps the left and right channels of a stereo stream. It does
// nothing for any other channel count.
type Inverter struct {
	core
}

func NewInverter(sampleRate, channels int) *Inverter {
	return &Inverter{core: newCore(sampleRate, channels, inverterParams)}
}

func (v *Inverter) Name() string { return "Inverter" }
func (v *Inverter) ShortName() string { return "inverter" }

func (v *Inverter) Clone() Effector {
	return &Inverter{core: v.core.clone()}
}

func (v *Inverter) Init() error {
	v.bypass = false
	return nil
}

func (v *Inverter) Reset() {}

func (v *Inverter) SetParam(i int, x float64) error { return v.setValue(i, x) }

func (v *Inverter) Display(i int) string {
	if v.Enabled() {
		return "on"
	}
	return "off"
}

// Enabled reports whether the Invert parameter is at least one half.
func (v *Inverter) Enabled() bool { return v.values[0] >= 0.5 }

func (v *Inverter) Process(buf []int32, frames int) error {
	if v.bypass || !v.Enabled() || v.channels != 2 {
		return nil
	}
	n, err := v.frameSpan("inverter", buf, frames)
	if err != nil {
		return err
	}
	for i := 0; i+1 < n; i += 2 {
		buf[i], buf[i+1] = buf[i+1], buf[i]
	}
	return nil
}
