// Package qinwave is a MIDI-driven sample synthesizer. A Synth pulls note
// events from a queue, streams the matching recorded samples from disk per
// voice, runs the voice and instrument effect chains, mixes the voices and
// writes the result to an audio sink.
package qinwave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbegin/qinwave-go/internal/audio"
	intfx "github.com/cbegin/qinwave-go/internal/effects"
	"github.com/cbegin/qinwave-go/internal/midi"
	"github.com/cbegin/qinwave-go/internal/mixer"
	"github.com/cbegin/qinwave-go/internal/qerr"
	intwt "github.com/cbegin/qinwave-go/internal/wavetable"
)

const (
	// DefaultBurst is the largest write handed to the sink at once.
	DefaultBurst = 4096
	// endOfStreamDelay is how much queued output may remain when Run gives
	// up after a fatal render error.
	endOfStreamDelay = 40 * time.Millisecond
	pollInterval     = 5 * time.Millisecond
)

// MIDI controllers handled by the synth itself.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

type Option func(*synthConfig)

type synthConfig struct {
	latency   time.Duration
	format    audio.Format
	effects   []EffectConfig
	burst     int
	volume    int
	polyphony int
	logf      func(format string, args ...any)
}

func defaultSynthConfig() synthConfig {
	return synthConfig{
		format:  audio.S32LE,
		effects: DefaultConfig().Effects,
		burst:   DefaultBurst,
		volume:  mixer.MaxVolume,
	}
}

// WithLatency sets the sink's target buffering.
func WithLatency(d time.Duration) Option {
	return func(cfg *synthConfig) {
		cfg.latency = d
	}
}

// WithOutputFormat requests a sink format other than s32le. When the sink
// cannot take it the synth falls back to s16le.
func WithOutputFormat(f audio.Format) Option {
	return func(cfg *synthConfig) {
		cfg.format = f
	}
}

// WithEffects replaces the default effect chains.
func WithEffects(effects []EffectConfig) Option {
	return func(cfg *synthConfig) {
		cfg.effects = effects
	}
}

// WithBurst caps the bytes written to the sink per write.
func WithBurst(bytes int) Option {
	return func(cfg *synthConfig) {
		if bytes > 0 {
			cfg.burst = bytes
		}
	}
}

// WithVolume sets the voice mix level, 0 to mixer.MaxVolume. Zero mutes.
func WithVolume(volume int) Option {
	return func(cfg *synthConfig) {
		cfg.volume = min(max(volume, 0), mixer.MaxVolume)
	}
}

// WithPolyphony limits the number of simultaneous voices.
func WithPolyphony(n int) Option {
	return func(cfg *synthConfig) {
		cfg.polyphony = n
	}
}

// WithLogger installs a printf-style hook for sink negotiation, voice
// allocation and end-of-stream messages.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(cfg *synthConfig) {
		cfg.logf = logf
	}
}

// Synth owns the render pipeline. Send may be called from any goroutine;
// everything else belongs to the goroutine running Run or Step.
type Synth struct {
	cat    *intwt.Catalog
	engine *intwt.Engine
	fx     *intfx.Effectors
	sink   audio.Sink
	out    audio.Config

	queue  *midi.Queue
	sendMu sync.Mutex

	volume   int
	burst    int
	channels int
	resample bool
	logf     func(format string, args ...any)

	chunk   int // samples rendered per pass
	scratch []byte
	master  []int32
	voice   []int32
	pending []byte

	written int64
	err     error
}

// New opens sink at the catalog's rate and channel count and builds the
// effect chains. The synth takes ownership of cat and sink; Close releases
// both. If New fails the sink is closed and cat is left to the caller.
func New(cat *intwt.Catalog, sink audio.Sink, opts ...Option) (*Synth, error) {
	cfg := defaultSynthConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Synth{
		cat:    cat,
		sink:   sink,
		queue:  midi.NewQueue(),
		volume: cfg.volume,
		burst:  cfg.burst,
		logf:   cfg.logf,
	}
	s.engine = intwt.New(cat, intwt.Params{Polyphony: cfg.polyphony, Trace: cfg.logf})

	rate, channels := s.engine.SampleRate(), s.engine.Channels()
	if rate == 0 || channels == 0 {
		_ = sink.Close()
		return nil, qerr.New(qerr.InvalidData, "new synth", "catalog has no regions")
	}
	s.channels = channels
	if err := s.openSink(rate, channels, cfg); err != nil {
		_ = sink.Close()
		return nil, err
	}

	s.fx = intfx.NewEffectors(s.engine.Polyphony())
	if err := buildEffects(s.fx, cfg.effects, rate, channels); err != nil {
		s.fx.Clear()
		_ = sink.Close()
		return nil, err
	}
	for v := 0; v < s.fx.Polyphony(); v++ {
		s.fx.GroupGate(v, true)
	}

	frames := max(s.burst/s.out.FrameBytes(), 1)
	s.chunk = frames * channels
	s.master = make([]int32, s.chunk)
	s.voice = make([]int32, s.chunk)
	s.scratch = make([]byte, s.chunk*s.engine.MaxSampleWidth())
	s.pending = make([]byte, 0, s.burst+s.chunk*s.out.Format.Bytes())
	return s, nil
}

// openSink asks for the preferred format and falls back to s16le, which
// every sink plays.
func (s *Synth) openSink(rate, channels int, cfg synthConfig) error {
	want := cfg.format
	if !want.Valid() {
		want = audio.S32LE
	}
	err := s.sink.Init(rate, channels, want, cfg.latency)
	if err != nil && !errors.Is(err, qerr.Replaced) && want != audio.S16LE {
		s.tracef("qinwave: %s: %v, retrying with %s", s.sink.Name(), err, audio.S16LE)
		err = s.sink.Init(rate, channels, audio.S16LE, cfg.latency)
	}
	if err != nil && !errors.Is(err, qerr.Replaced) {
		return fmt.Errorf("open %s sink: %w", s.sink.Name(), err)
	}
	s.out = s.sink.Config()
	if s.out.SampleRate != rate || s.out.Channels != channels {
		return qerr.Errorf(qerr.InvalidParameter, "open sink", "%s opened %d Hz x%d, need %d Hz x%d",
			s.sink.Name(), s.out.SampleRate, s.out.Channels, rate, channels)
	}
	s.resample = s.out.Format != audio.S32LE
	if s.resample {
		s.tracef("qinwave: %s does not take %s, resampling to %s", s.sink.Name(), want, s.out.Format)
	}
	s.tracef("qinwave: audio %s %d Hz x%d %s", s.sink.Name(), rate, channels, s.out.Format)
	return nil
}

func (s *Synth) tracef(format string, args ...any) {
	if s.logf != nil {
		s.logf(format, args...)
	}
}

// Send queues ev for the render loop. A full queue drops the event and
// returns an error of kind qerr.QueueFull.
func (s *Synth) Send(ev midi.Event) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.queue.Push(ev)
}

// Queue exposes the event queue, mainly for its drop counter.
func (s *Synth) Queue() *midi.Queue { return s.queue }

// Step fills the sink's free space, taking one queued event per burst. It
// returns the bytes written. After a render error every later call returns
// the same error.
func (s *Synth) Step() (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	free := s.sink.FreeSpace()
	total := 0
	for free > 0 {
		if ev, err := s.queue.Pop(); err == nil {
			if err := s.handle(ev); err != nil {
				s.err = err
				return total, err
			}
		}
		pad := min(free, s.burst)
		free -= pad
		n, err := s.pump(pad)
		total += n
		if err != nil {
			s.err = err
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// handle applies one event to the engine and the voice chains.
func (s *Synth) handle(ev midi.Event) error {
	switch {
	case ev.Type == midi.NoteOn && ev.Velocity() > 0:
		idx, err := s.engine.Dispatch(ev)
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", ev, err)
		}
		if idx >= 0 {
			s.fx.GroupReset(idx)
			s.fx.GroupGate(idx, true)
		}
	case ev.Type == midi.NoteOff || ev.Type == midi.NoteOn:
		for i := 0; i < s.engine.Polyphony(); i++ {
			if u := s.engine.Unit(i); u.Busy && u.Event.Key() == ev.Key() {
				s.fx.GroupGate(i, false)
			}
		}
	case ev.Type == midi.ControlChange && ev.Controller() == ccAllNotesOff:
		for i := 0; i < s.engine.Polyphony(); i++ {
			s.fx.GroupGate(i, false)
		}
	case ev.Type == midi.ControlChange && ev.Controller() == ccAllSoundOff:
		s.engine.Reset()
		for i := 0; i < s.engine.Polyphony(); i++ {
			s.fx.GroupReset(i)
		}
	}
	return nil
}

// pump renders until pad bytes are pending and writes them. Bytes the sink
// does not take stay pending for the next call.
func (s *Synth) pump(pad int) (int, error) {
	for len(s.pending) < pad {
		if err := s.render(); err != nil {
			return 0, err
		}
	}
	n, err := s.sink.Write(s.pending[:pad])
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", s.sink.Name(), err)
	}
	s.pending = s.pending[:copy(s.pending, s.pending[n:])]
	s.written += int64(n)
	return n, nil
}

// render appends one chunk of output to pending.
func (s *Synth) render() error {
	n := s.chunk
	clear(s.master)
	for i := 0; i < s.engine.Polyphony(); i++ {
		if !s.engine.Busy(i) {
			continue
		}
		if err := s.engine.RenderVoice(i, s.scratch, s.voice, n); err != nil {
			return fmt.Errorf("voice %d: %w", i, err)
		}
		if err := s.fx.ProcessGroup(i, s.voice, n, s.channels); err != nil {
			return fmt.Errorf("voice %d effects: %w", i, err)
		}
		if s.volume == 0 {
			continue
		}
		if err := mixer.Mix(s.master, s.voice, n, s.volume); err != nil {
			return err
		}
	}
	if err := s.fx.ProcessInstrument(s.master, n, s.channels); err != nil {
		return fmt.Errorf("instrument effects: %w", err)
	}
	start := len(s.pending)
	s.pending = s.pending[:start+n*s.out.Format.Bytes()]
	_, err := mixer.Resample(s.pending[start:], s.master, n, s.out.Format)
	return err
}

// Run steps until ctx is cancelled or rendering fails. On failure it lets
// the sink play out what it holds, then returns the error. Cancellation
// returns nil.
func (s *Synth) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		n, err := s.Step()
		if err != nil {
			s.drain(ctx, ticker)
			s.tracef("qinwave: output truncated at end: %v", err)
			return err
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Synth) drain(ctx context.Context, ticker *time.Ticker) {
	for s.sink.Delay() > endOfStreamDelay {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Pause and Resume hold and release the sink. Voices keep their position.
func (s *Synth) Pause() { s.sink.Pause() }
func (s *Synth) Resume() { s.sink.Resume() }

// OutputConfig is the stream the sink negotiated.
func (s *Synth) OutputConfig() audio.Config { return s.out }

// Resampling reports whether output is narrowed from the internal 32 bits.
func (s *Synth) Resampling() bool { return s.resample }

// Written is the number of bytes handed to the sink.
func (s *Synth) Written() int64 { return s.written }

// ActiveVoices is the number of sounding voices.
func (s *Synth) ActiveVoices() int { return s.engine.ActiveVoiceCount() }

// Steals counts notes that took over a sounding voice.
func (s *Synth) Steals() int { return s.engine.Steals() }

// Effects exposes the voice and instrument chains for live tweaking from
// the render goroutine.
func (s *Synth) Effects() *intfx.Effectors { return s.fx }

// Close releases the effect chains, the sink and the catalog.
func (s *Synth) Close() error {
	return errors.Join(s.closeOutput(), s.cat.Close())
}

func (s *Synth) closeOutput() error {
	s.fx.Clear()
	s.engine.Reset()
	return s.sink.Close()
}
