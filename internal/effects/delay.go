package effects

// MaxDelaySamples is the ring length per channel.
const MaxDelaySamples = 192000

const (
	delaySamples = iota
	delayLevel
	delayFeedback
)

var delayParams = []Param{
	{Name: "Samples", Label: "smpl", Default: 50000, Min: 0, Max: MaxDelaySamples},
	{Name: "Level", Label: "", Default: 0.5, Min: 0, Max: 1},
	{Name: "Feedback", Label: "", Default: 0.5, Min: 0, Max: 1},
}

// Delay is a per-channel feedback delay line. Level and feedback run on a
// x100 integer scale.
type Delay struct {
	core
	delay    int
	level    int64
	feedback int64
	bufs     [][]int32
	pos      int
}

func NewDelay(sampleRate, channels int) *Delay {
	d := &Delay{core: newCore(sampleRate, channels, delayParams)}
	d.update()
	return d
}

func (d *Delay) Name() string { return "Delay" }
func (d *Delay) ShortName() string { return "delay" }

func (d *Delay) Clone() Effector {
	c := &Delay{core: d.core.clone()}
	c.update()
	return c
}

// Init allocates the rings. Prototypes never hold buffers.
func (d *Delay) Init() error {
	d.update()
	d.bypass = false
	d.bufs = make([][]int32, d.channels)
	for i := range d.bufs {
		d.bufs[i] = make([]int32, MaxDelaySamples)
	}
	d.pos = 0
	return nil
}

func (d *Delay) Uninit() error {
	d.bufs = nil
	return nil
}

func (d *Delay) Reset() {
	for _, b := range d.bufs {
		clear(b)
	}
	d.pos = 0
}

func (d *Delay) SetParam(i int, v float64) error {
	if err := d.setValue(i, v); err != nil {
		return err
	}
	d.update()
	return nil
}

func (d *Delay) update() {
	d.delay = int(d.values[delaySamples])
	d.level = int64(d.values[delayLevel] * 100)
	d.feedback = int64(d.values[delayFeedback] * 100)
}

func (d *Delay) Process(buf []int32, frames int) error {
	if d.bypass || d.bufs == nil {
		return nil
	}
	if _, err := d.frameSpan("delay", buf, frames); err != nil {
		return err
	}
	ch := d.channels
	for f := 0; f < frames; f++ {
		cursor := (d.pos - d.delay + MaxDelaySamples) % MaxDelaySamples
		for c := 0; c < ch; c++ {
			ring := d.bufs[c]
			in := int64(buf[f*ch+c])
			delayed := int64(ring[cursor])
			ring[d.pos] = clip32(in + delayed*d.feedback/100)
			buf[f*ch+c] = clip32(in + d.level*delayed/100)
		}
		d.pos++
		if d.pos >= MaxDelaySamples {
			d.pos = 0
		}
	}
	return nil
}
