package effects

const (
	reverbRoom = iota
	reverbFeedback
	reverbWet
)

var reverbParams = []Param{
	{Name: "Room size", Label: "", Default: 0.5, Min: 0, Max: 1},
	{Name: "Feedback", Label: "", Default: 0.7, Min: 0, Max: 0.95},
	{Name: "Wet", Label: "", Default: 0.25, Min: 0, Max: 1},
}

// Reverb is a Schroeder reverb: four parallel combs into two allpasses, fed
// by the frame's channel average and mixed back into every channel.
type Reverb struct {
	core
	combs   [4]combFilter
	allpass [2]allpassFilter
	wet     float32
}

type combFilter struct {
	buf []float32
	pos int
	fb  float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

func NewReverb(sampleRate, channels int) *Reverb {
	return &Reverb{core: newCore(sampleRate, channels, reverbParams)}
}

func (r *Reverb) Name() string { return "Reverb" }
func (r *Reverb) ShortName() string { return "reverb" }

func (r *Reverb) Clone() Effector {
	return &Reverb{core: r.core.clone()}
}

// Init sizes the delay lines from the room size.
func (r *Reverb) Init() error {
	r.bypass = false
	r.build()
	return nil
}

func (r *Reverb) Uninit() error {
	r.combs = [4]combFilter{}
	r.allpass = [2]allpassFilter{}
	return nil
}

func (r *Reverb) SetParam(i int, v float64) error {
	if err := r.setValue(i, v); err != nil {
		return err
	}
	if r.combs[0].buf != nil {
		r.build()
	}
	return nil
}

func (r *Reverb) build() {
	base := int(float32(r.rate) * float32(r.values[reverbRoom]) * 0.05)
	if base < 10 {
		base = 10
	}
	fb := float32(r.values[reverbFeedback])
	r.wet = float32(r.values[reverbWet])
	// Prime-ish ratios keep the comb resonances apart.
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = combFilter{buf: make([]float32, combLens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		r.allpass[i] = allpassFilter{buf: make([]float32, max(apLens[i], 1)), fb: 0.5}
	}
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		clear(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}

func (r *Reverb) Process(buf []int32, frames int) error {
	if r.bypass || r.combs[0].buf == nil {
		return nil
	}
	if _, err := r.frameSpan("reverb", buf, frames); err != nil {
		return err
	}
	ch := r.channels
	dry := 1 - r.wet
	for f := 0; f < frames; f++ {
		row := buf[f*ch : f*ch+ch]
		var mono float32
		for _, s := range row {
			mono += toUnit(s)
		}
		mono /= float32(ch)

		var out float32
		for i := range r.combs {
			out += r.combs[i].process(mono)
		}
		out *= 0.25
		for i := range r.allpass {
			out = r.allpass[i].process(out)
		}
		for i, s := range row {
			row[i] = fromUnit(toUnit(s)*dry + out*r.wet)
		}
	}
	return nil
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
