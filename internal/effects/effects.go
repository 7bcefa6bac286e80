// Package effects implements the per-voice and instrument-wide processors
// applied to interleaved int32 sample buffers.
package effects

import (
	"math"
	"strconv"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

// Effector processes interleaved audio in place. Instances are created from a
// configured prototype with Clone and are not safe for concurrent use.
type Effector interface {
	Name() string
	ShortName() string

	// Clone returns a new instance with the same parameters and fresh state.
	Clone() Effector
	Init() error
	Uninit() error
	Reset()

	// Process transforms frames interleaved frames of buf.
	Process(buf []int32, frames int) error
	Gate(on bool)
	SetBypass(bypass bool)
	Bypassed() bool

	Params() []Param
	Param(i int) float64
	SetParam(i int, v float64) error
	Display(i int) string
}

// Param describes one named float parameter.
type Param struct {
	Name    string
	Label   string
	Default float64
	Min     float64
	Max     float64
}

// core carries the state shared by every effector: stream shape, bypass and
// parameter values.
type core struct {
	rate     int
	channels int
	bypass   bool
	meta     []Param
	values   []float64
}

func newCore(rate, channels int, meta []Param) core {
	values := make([]float64, len(meta))
	for i, p := range meta {
		values[i] = p.Default
	}
	return core{rate: rate, channels: channels, meta: meta, values: values}
}

func (c *core) clone() core {
	cp := *c
	cp.values = append([]float64(nil), c.values...)
	return cp
}

func (c *core) Params() []Param { return c.meta }

func (c *core) Param(i int) float64 {
	if i < 0 || i >= len(c.values) {
		return 0
	}
	return c.values[i]
}

// setValue stores v clamped to the parameter's range.
func (c *core) setValue(i int, v float64) error {
	if i < 0 || i >= len(c.values) {
		return qerr.Errorf(qerr.InvalidParameter, "set param", "index %d of %d", i, len(c.values))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return qerr.Errorf(qerr.InvalidNumber, "set param", "%s = %v", c.meta[i].Name, v)
	}
	p := c.meta[i]
	if v < p.Min {
		v = p.Min
	}
	if v > p.Max {
		v = p.Max
	}
	c.values[i] = v
	return nil
}

func (c *core) Display(i int) string {
	return strconv.FormatFloat(c.Param(i), 'g', 8, 64)
}

func (c *core) SetBypass(bypass bool) { c.bypass = bypass }
func (c *core) Bypassed() bool { return c.bypass }

// Gate is ignored by effectors without an envelope.
func (c *core) Gate(bool) {}

func (c *core) Uninit() error { return nil }

// frameSpan checks that buf holds frames frames and returns the sample count.
func (c *core) frameSpan(op string, buf []int32, frames int) (int, error) {
	n := frames * c.channels
	if frames < 0 || n > len(buf) {
		return 0, qerr.Errorf(qerr.BufferOverflow, op, "%d frames of %d channels into %d samples", frames, c.channels, len(buf))
	}
	return n, nil
}

func clip32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// unitScale maps the int32 range onto [-1, 1) for the floating point effects.
const unitScale = 1 << 31

func toUnit(s int32) float32 { return float32(float64(s) / unitScale) }

func fromUnit(v float32) int32 { return clip32(int64(float64(v) * unitScale)) }
