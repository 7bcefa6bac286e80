// Package wavetable streams recorded instrument samples from disk into
// per-voice playback units.
package wavetable

import (
	"io"

	"github.com/cbegin/qinwave-go/internal/midi"
	"github.com/cbegin/qinwave-go/internal/qerr"
)

// maxLevel is unity gain for the velocity compression pass.
const maxLevel = 128

// Params controls the playback engine.
type Params struct {
	// Polyphony caps the number of units; it never exceeds the catalog's.
	Polyphony int
	// Trace receives dispatch and steal decisions. Nil disables tracing.
	Trace func(format string, args ...any)
}

// DefaultParams returns the full instrument polyphony with tracing off.
func DefaultParams() Params {
	return Params{Polyphony: midi.MaxPolyphony}
}

// Unit is a snapshot of one playback unit.
type Unit struct {
	Busy      bool
	Event     midi.Event
	Region    *Region
	Dynamics  int
	Level     int
	Len       int
	Remaining int
	Size      int
}

type unit struct {
	Unit
	file Handle
}

// Engine owns a fixed set of playback units fed from a Catalog. It is not
// safe for concurrent use; the render loop is its only caller.
type Engine struct {
	cat    *Catalog
	units  []unit
	trace  func(format string, args ...any)
	stolen int
}

// New creates an engine over cat. The catalog stays owned by the caller.
func New(cat *Catalog, params Params) *Engine {
	poly := params.Polyphony
	if poly <= 0 || poly > cat.Polyphony() {
		poly = cat.Polyphony()
	}
	return &Engine{
		cat:   cat,
		units: make([]unit, poly),
		trace: params.Trace,
	}
}

func (e *Engine) tracef(format string, args ...any) {
	if e.trace != nil {
		e.trace(format, args...)
	}
}

// Dispatch starts the region closest to the event's velocity on a unit and
// returns the unit index. Events that do not start a note return -1 and no
// error. When every unit is busy the one closest to finishing is stolen.
func (e *Engine) Dispatch(ev midi.Event) (int, error) {
	if ev.Type != midi.NoteOn || ev.Velocity() == 0 {
		return -1, nil
	}
	note := midi.MapNote(ev.Key())
	if note == midi.NoteInvalid {
		return -1, nil
	}
	idx, stolen := e.stealVoice()

	reg := e.matchRegion(idx, note, ev.Velocity())
	if reg == nil {
		return -1, nil
	}
	fh, err := e.cat.Handle(idx, reg)
	if err != nil {
		return -1, err
	}
	if _, err := fh.Seek(reg.Offset, io.SeekStart); err != nil {
		return -1, qerr.Wrap(qerr.FileReadFailure, "dispatch", err)
	}

	if stolen {
		e.stolen++
		e.tracef("wavetable: steal unit %d (%s, %d bytes left)", idx, e.units[idx].Region.Name, e.units[idx].Remaining)
	}
	level := maxLevel + ev.Velocity() - reg.Dynamics
	e.units[idx] = unit{
		Unit: Unit{
			Busy:      true,
			Event:     ev,
			Region:    reg,
			Dynamics:  reg.Dynamics,
			Level:     level,
			Remaining: reg.Size,
			Size:      reg.Size,
		},
		file: fh,
	}
	e.tracef("wavetable: unit %d sample %s velocity=%d dynamics=%d level=%d", idx, reg.Name, ev.Velocity(), reg.Dynamics, level)
	return idx, nil
}

// stealVoice returns the first idle unit, else the busy unit with the fewest
// bytes left. Ties go to the lowest index.
func (e *Engine) stealVoice() (int, bool) {
	for i := range e.units {
		if !e.units[i].Busy {
			return i, false
		}
	}
	quiet := 0
	minRemain := e.units[0].Remaining
	for i := 1; i < len(e.units); i++ {
		if e.units[i].Remaining < minRemain {
			minRemain = e.units[i].Remaining
			quiet = i
		}
	}
	return quiet, true
}

// matchRegion picks the region with the smallest velocity distance. The first
// region found at that distance wins.
func (e *Engine) matchRegion(slot int, note midi.Note, velocity int) *Region {
	var best *Region
	bestDelta := maxDynamics
	for _, r := range e.cat.Regions(note) {
		d := velocity - r.Dynamics
		if d < 0 {
			d = -d
		}
		if d < bestDelta {
			best, bestDelta = r, d
		}
	}
	if best == nil {
		// Every region sits exactly maxDynamics away; fall back to the last.
		if rs := e.cat.Regions(note); len(rs) > 0 {
			best = rs[len(rs)-1]
		}
	}
	return best
}

// RenderVoice fills out[:n] with the next n samples of unit index, reading the
// source bytes through scratch. Idle units produce silence. The tail past the
// end of a region is zero.
func (e *Engine) RenderVoice(index int, scratch []byte, out []int32, n int) error {
	const op = "render voice"
	if index < 0 || index >= len(e.units) {
		return qerr.Errorf(qerr.OutOfRange, op, "unit %d", index)
	}
	if n < 0 || n > len(out) {
		return qerr.Errorf(qerr.BufferOverflow, op, "%d samples into %d", n, len(out))
	}
	out = out[:n]
	u := &e.units[index]
	if !u.Busy {
		clear(out)
		return nil
	}

	width := u.Region.BytesPerSample()
	want := n * width
	if want > len(scratch) {
		return qerr.Errorf(qerr.BufferOverflow, op, "%d bytes into %d byte scratch", want, len(scratch))
	}
	length := want
	if length > u.Remaining {
		length = u.Remaining
	}
	raw := scratch[:want]
	if _, err := io.ReadFull(u.file, raw[:length]); err != nil {
		return qerr.Wrap(qerr.FileReadFailure, op, err)
	}
	clear(raw[length:])

	Widen(out, raw, width, false)
	applyLevel(out, u.Level)

	u.Len += length
	u.Remaining -= length
	if u.Remaining <= 0 {
		u.Remaining = 0
		u.Busy = false
	}
	return nil
}

// Busy reports whether unit index is playing.
func (e *Engine) Busy(index int) bool {
	return index >= 0 && index < len(e.units) && e.units[index].Busy
}

// Unit returns a copy of unit index's state.
func (e *Engine) Unit(index int) Unit {
	if index < 0 || index >= len(e.units) {
		return Unit{}
	}
	return e.units[index].Unit
}

// Polyphony is the number of units.
func (e *Engine) Polyphony() int { return len(e.units) }

// ActiveVoiceCount returns the number of busy units.
func (e *Engine) ActiveVoiceCount() int {
	count := 0
	for i := range e.units {
		if e.units[i].Busy {
			count++
		}
	}
	return count
}

// Steals is the number of dispatches that reassigned a busy unit.
func (e *Engine) Steals() int { return e.stolen }

// SampleRate and Channels describe the stream, taken from the catalog's
// common region. Both are zero for an empty catalog.
func (e *Engine) SampleRate() int {
	if r := e.cat.Common(); r != nil {
		return r.SampleRate
	}
	return 0
}

func (e *Engine) Channels() int {
	if r := e.cat.Common(); r != nil {
		return r.Channels
	}
	return 0
}

// MaxSampleWidth is the widest source sample in the catalog, in bytes.
func (e *Engine) MaxSampleWidth() int {
	w := 0
	for _, r := range e.cat.All() {
		if b := r.BytesPerSample(); b > w {
			w = b
		}
	}
	return w
}

// Reset idles every unit.
func (e *Engine) Reset() {
	for i := range e.units {
		e.units[i] = unit{}
	}
}
