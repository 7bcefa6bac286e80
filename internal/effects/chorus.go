package effects

const (
	chorusDelay = iota
	chorusFeedback
	chorusDepth
	chorusRate
	chorusWet
	chorusWave
)

var chorusParams = []Param{
	{Name: "Delay time", Label: "ms", Default: 15, Min: 1, Max: 50},
	{Name: "Feedback", Label: "", Default: 0.3, Min: 0, Max: 0.9},
	{Name: "Depth", Label: "ms", Default: 3, Min: 0, Max: 20},
	{Name: "Rate", Label: "Hz", Default: 1.5, Min: 0.01, Max: 10},
	{Name: "Wet", Label: "", Default: 0.4, Min: 0, Max: 1},
	{Name: "Wave", Label: "", Default: WaveSine, Min: WaveSine, Max: WaveSaw},
}

// Chorus is an LFO-modulated fractional delay per channel. With a short
// delay and high feedback it works as a flanger.
type Chorus struct {
	core
	bufs     [][]float32
	pos      int
	size     int
	center   float32
	mod      lfo
	feedback float32
	wet      float32
}

func NewChorus(sampleRate, channels int) *Chorus {
	return &Chorus{core: newCore(sampleRate, channels, chorusParams)}
}

func (c *Chorus) Name() string { return "Chorus" }
func (c *Chorus) ShortName() string { return "chorus" }

func (c *Chorus) Clone() Effector {
	return &Chorus{core: c.core.clone()}
}

func (c *Chorus) Init() error {
	c.bypass = false
	c.build()
	return nil
}

func (c *Chorus) Uninit() error {
	c.bufs = nil
	return nil
}

func (c *Chorus) SetParam(i int, v float64) error {
	if err := c.setValue(i, v); err != nil {
		return err
	}
	if c.bufs != nil {
		c.build()
	}
	return nil
}

func (c *Chorus) build() {
	sr := float64(c.rate)
	base := int(c.values[chorusDelay] * sr / 1000.0)
	depth := c.values[chorusDepth] * sr / 1000.0
	c.size = max(base+2*int(depth)+3, 4)
	c.center = float32(base) + float32(depth)
	c.mod.set(depth, c.values[chorusRate], int(c.values[chorusWave]), c.rate)
	c.mod.reset()
	c.feedback = float32(c.values[chorusFeedback])
	c.wet = float32(c.values[chorusWet])
	c.bufs = make([][]float32, c.channels)
	for i := range c.bufs {
		c.bufs[i] = make([]float32, c.size)
	}
	c.pos = 0
}

func (c *Chorus) Reset() {
	for _, b := range c.bufs {
		clear(b)
	}
	c.pos = 0
	c.mod.reset()
}

func (c *Chorus) Process(buf []int32, frames int) error {
	if c.bypass || c.bufs == nil {
		return nil
	}
	if _, err := c.frameSpan("chorus", buf, frames); err != nil {
		return err
	}
	ch := c.channels
	for f := 0; f < frames; f++ {
		mod := float32(c.mod.next())
		readPos := float32(c.pos) - (c.center + mod)
		for readPos < 0 {
			readPos += float32(c.size)
		}
		idx := int(readPos)
		frac := readPos - float32(idx)
		idx2 := idx + 1
		if idx2 >= c.size {
			idx2 = 0
		}
		for k := 0; k < ch; k++ {
			b := c.bufs[k]
			in := toUnit(buf[f*ch+k])
			b[c.pos] = in
			del := b[idx]*(1-frac) + b[idx2]*frac
			b[c.pos] += del * c.feedback
			buf[f*ch+k] = fromUnit(in*(1-c.wet) + del*c.wet)
		}
		c.pos++
		if c.pos >= c.size {
			c.pos = 0
		}
	}
	return nil
}
