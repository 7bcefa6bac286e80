package effects

import "math"

const (
	compThreshold = iota
	compRatio
	compAttack
	compRelease
	compMakeup
)

var compressorParams = []Param{
	{Name: "Threshold", Label: "dB", Default: -20, Min: -60, Max: 0},
	{Name: "Ratio", Label: ":1", Default: 4, Min: 1, Max: 20},
	{Name: "Attack time", Label: "ms", Default: 5, Min: 0.1, Max: 1000},
	{Name: "Release time", Label: "ms", Default: 100, Min: 1, Max: 5000},
	{Name: "Makeup", Label: "dB", Default: 6, Min: 0, Max: 24},
}

// Compressor reduces gain above a threshold with a peak envelope follower
// per channel.
type Compressor struct {
	core
	threshold float32
	ratio     float32
	attack    float32
	release   float32
	makeup    float32
	env       []float32
}

func NewCompressor(sampleRate, channels int) *Compressor {
	c := &Compressor{core: newCore(sampleRate, channels, compressorParams)}
	c.update()
	return c
}

func (c *Compressor) Name() string { return "Compressor" }
func (c *Compressor) ShortName() string { return "compressor" }

func (c *Compressor) Clone() Effector {
	cp := &Compressor{core: c.core.clone()}
	cp.update()
	return cp
}

func (c *Compressor) Init() error {
	c.update()
	c.bypass = false
	c.env = make([]float32, c.channels)
	return nil
}

func (c *Compressor) Reset() { clear(c.env) }

func (c *Compressor) SetParam(i int, v float64) error {
	if err := c.setValue(i, v); err != nil {
		return err
	}
	c.update()
	return nil
}

// update converts times into one-pole coefficients and decibels into gains.
func (c *Compressor) update() {
	sr := float64(c.rate)
	c.threshold = float32(math.Pow(10, c.values[compThreshold]/20))
	c.ratio = float32(c.values[compRatio])
	c.attack = float32(1.0 - math.Exp(-1.0/(c.values[compAttack]*sr/1000.0)))
	c.release = float32(1.0 - math.Exp(-1.0/(c.values[compRelease]*sr/1000.0)))
	c.makeup = float32(math.Pow(10, c.values[compMakeup]/20))
}

func (c *Compressor) Process(buf []int32, frames int) error {
	if c.bypass || c.env == nil {
		return nil
	}
	n, err := c.frameSpan("compressor", buf, frames)
	if err != nil {
		return err
	}
	ch := c.channels
	for i, s := range buf[:n] {
		v := toUnit(s)
		env := &c.env[i%ch]
		abs := float32(math.Abs(float64(v)))
		if abs > *env {
			*env += c.attack * (abs - *env)
		} else {
			*env += c.release * (abs - *env)
		}
		buf[i] = fromUnit(v * c.gain(*env) * c.makeup)
	}
	return nil
}

func (c *Compressor) gain(env float32) float32 {
	if env <= c.threshold {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}
