package qinwave

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cbegin/qinwave-go/internal/audio"
	intfx "github.com/cbegin/qinwave-go/internal/effects"
	"github.com/cbegin/qinwave-go/internal/midi"
	"github.com/cbegin/qinwave-go/internal/qerr"
	intwt "github.com/cbegin/qinwave-go/internal/wavetable"
)

// writeInstrument lays out a one-note, 16-bit mono bank in a temp dir.
// declared overrides the size written to the descriptor when non-zero.
func writeInstrument(t *testing.T, pcm []byte, declared int) string {
	t.Helper()
	dir := t.TempDir()
	bank := make([]byte, intwt.BankHeaderSize)
	copy(bank, intwt.BankMagic)
	bank = append(bank, pcm...)
	if err := os.WriteFile(filepath.Join(dir, "qin.qwb"), bank, 0o644); err != nil {
		t.Fatal(err)
	}
	size := len(pcm)
	if declared > 0 {
		size = declared
	}
	var table strings.Builder
	table.WriteString(intwt.TableHeader + "\n")
	fmt.Fprintf(&table, "d1 open qin.qwb sn 64 %d 1 16 44100 1 2 \n", size)
	path := filepath.Join(dir, "qin.syntab")
	if err := os.WriteFile(path, []byte(table.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ramp(samples int) []byte {
	b := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(int16(i*7-samples)))
	}
	return b
}

func loadCatalog(t *testing.T, path string) *intwt.Catalog {
	t.Helper()
	cat, err := intwt.LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	return cat
}

// memSink collects everything written. It takes only the formats in accept
// and replaces anything else with s16le. A non-nil fail is returned by every
// Init; a non-zero rate overrides the negotiated sample rate.
type memSink struct {
	cfg    audio.Config
	accept []audio.Format
	fail   error
	rate   int
	free   int
	data   []byte
	delay  time.Duration
	closed bool
}

func (m *memSink) Init(rate, channels int, f audio.Format, latency time.Duration) error {
	if m.fail != nil {
		return m.fail
	}
	if m.rate != 0 {
		rate = m.rate
	}
	m.cfg = audio.Config{SampleRate: rate, Channels: channels, Format: f, Latency: latency}
	for _, a := range m.accept {
		if a == f {
			return nil
		}
	}
	m.cfg.Format = audio.S16LE
	return qerr.New(qerr.Replaced, "mem init", "using s16le")
}

func (m *memSink) FreeSpace() int { return m.free }

func (m *memSink) Write(p []byte) (int, error) {
	n := min(len(p), m.free)
	m.data = append(m.data, p[:n]...)
	return n, nil
}

func (m *memSink) Delay() time.Duration { return m.delay }
func (m *memSink) Pause() {}
func (m *memSink) Resume() {}
func (m *memSink) Reset() {}
func (m *memSink) Close() error { m.closed = true; return nil }
func (m *memSink) Name() string { return "mem" }
func (m *memSink) Config() audio.Config { return m.cfg }

func noteOn(vel int16) midi.Event {
	return midi.NewNoteOn(0, midi.MapKey(midi.NoteD1), vel)
}

func TestSynthNegotiatesThirtyTwoBit(t *testing.T) {
	sink := &memSink{accept: []audio.Format{audio.S32LE}}
	s, err := New(loadCatalog(t, writeInstrument(t, ramp(100), 0)), sink)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Resampling() || s.OutputConfig().Format != audio.S32LE {
		t.Fatalf("format = %v resampling=%v", s.OutputConfig().Format, s.Resampling())
	}
	if c := s.OutputConfig(); c.SampleRate != 44100 || c.Channels != 1 {
		t.Fatalf("config = %+v", c)
	}
}

func TestSynthFallsBackToSixteenBit(t *testing.T) {
	sink := &memSink{}
	var logs []string
	s, err := New(loadCatalog(t, writeInstrument(t, ramp(100), 0)), sink,
		WithLogger(func(format string, args ...any) { logs = append(logs, fmt.Sprintf(format, args...)) }))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if !s.Resampling() || s.OutputConfig().Format != audio.S16LE {
		t.Fatalf("format = %v", s.OutputConfig().Format)
	}
	if len(logs) == 0 {
		t.Fatalf("expected negotiation to be logged")
	}
}

func TestSynthRendersNoteAtSixteenBit(t *testing.T) {
	pcm := ramp(1000)
	sink := &memSink{accept: []audio.Format{audio.S16LE}, free: 4000}
	s, err := New(loadCatalog(t, writeInstrument(t, pcm, 0)), sink,
		WithOutputFormat(audio.S16LE), WithBurst(512))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Send(noteOn(64)); err != nil {
		t.Fatal(err)
	}
	n, err := s.Step()
	if err != nil {
		t.Fatal(err)
	}
	if n != 4000 || len(sink.data) != 4000 {
		t.Fatalf("wrote %d bytes, sink has %d", n, len(sink.data))
	}
	// Velocity equals the region dynamics, so the note plays at unity.
	for i := 0; i < len(pcm); i++ {
		if sink.data[i] != pcm[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, sink.data[i], pcm[i])
		}
	}
	for i := len(pcm); i < len(sink.data); i++ {
		if sink.data[i] != 0 {
			t.Fatalf("byte %d after the note = %#x, want silence", i, sink.data[i])
		}
	}
	if s.ActiveVoices() != 0 || s.Written() != 4000 {
		t.Fatalf("active=%d written=%d", s.ActiveVoices(), s.Written())
	}
}

func TestSynthVolumeScalesMix(t *testing.T) {
	pcm := ramp(256)
	sink := &memSink{accept: []audio.Format{audio.S16LE}, free: 512}
	s, err := New(loadCatalog(t, writeInstrument(t, pcm, 0)), sink,
		WithOutputFormat(audio.S16LE), WithVolume(64))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	_ = s.Send(noteOn(64))
	if _, err := s.Step(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 256; i++ {
		in := int32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) << 16
		want := int16((in / 2) >> 16)
		got := int16(binary.LittleEndian.Uint16(sink.data[i*2:]))
		if got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestSynthPendingSurvivesShortWrites(t *testing.T) {
	sink := &memSink{accept: []audio.Format{audio.S16LE}, free: 300}
	s, err := New(loadCatalog(t, writeInstrument(t, ramp(1000), 0)), sink,
		WithOutputFormat(audio.S16LE), WithBurst(256))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	_ = s.Send(noteOn(64))
	for i := 0; i < 5; i++ {
		if _, err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}
	want := ramp(1000)[:len(sink.data)]
	for i := range want {
		if sink.data[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, sink.data[i], want[i])
		}
	}
}

func TestSynthNoteOffReleasesEnvelope(t *testing.T) {
	sink := &memSink{accept: []audio.Format{audio.S16LE}, free: 64}
	s, err := New(loadCatalog(t, writeInstrument(t, ramp(20000), 0)), sink,
		WithOutputFormat(audio.S16LE),
		WithEffects([]EffectConfig{{Kind: "adsr", Scope: "group"}}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	_ = s.Send(noteOn(64))
	if _, err := s.Step(); err != nil {
		t.Fatal(err)
	}
	_ = s.Send(midi.NewNoteOff(0, midi.MapKey(midi.NoteD1)))
	if _, err := s.Step(); err != nil {
		t.Fatal(err)
	}
	env, ok := s.Effects().Group(0).Effects()[0].(*intfx.ADSR)
	if !ok {
		t.Fatalf("voice chain = %T", s.Effects().Group(0).Effects()[0])
	}
	if env.State() != intfx.EnvRelease {
		t.Fatalf("envelope state = %s, want release", env.State())
	}
	if other := s.Effects().Group(1).Effects()[0].(*intfx.ADSR); other.State() != intfx.EnvAttack {
		t.Fatalf("idle voice envelope = %s", other.State())
	}
}

func TestSynthQueueFull(t *testing.T) {
	s, err := New(loadCatalog(t, writeInstrument(t, ramp(10), 0)), &memSink{accept: []audio.Format{audio.S32LE}})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	for i := 0; i < midi.QueueSize; i++ {
		if err := s.Send(noteOn(64)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := s.Send(noteOn(64)); !errors.Is(err, qerr.QueueFull) {
		t.Fatalf("expected QueueFull, got %v", err)
	}
	if s.Queue().Drops() != 1 {
		t.Fatalf("drops = %d", s.Queue().Drops())
	}
}

func TestRunStopsOnReadFailure(t *testing.T) {
	// The descriptor claims more data than the bank holds.
	path := writeInstrument(t, ramp(100), 8000)
	sink := &memSink{accept: []audio.Format{audio.S32LE}, free: 1 << 16}
	s, err := New(loadCatalog(t, path), sink)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	_ = s.Send(noteOn(64))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.Run(ctx)
	if !errors.Is(err, qerr.FileReadFailure) {
		t.Fatalf("expected FileReadFailure, got %v", err)
	}
	if _, again := s.Step(); !errors.Is(again, qerr.FileReadFailure) {
		t.Fatalf("Step after failure = %v", again)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	sink := &memSink{accept: []audio.Format{audio.S32LE}}
	s, err := New(loadCatalog(t, writeInstrument(t, ramp(10), 0)), sink)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if err := s.Close(); err != nil || !sink.closed {
		t.Fatalf("Close = %v closed=%v", err, sink.closed)
	}
}

func TestNewRejectsBadEffects(t *testing.T) {
	sink := &memSink{accept: []audio.Format{audio.S32LE}}
	cat := loadCatalog(t, writeInstrument(t, ramp(10), 0))
	defer cat.Close()
	_, err := New(cat, sink, WithEffects([]EffectConfig{{Kind: "flanger"}}))
	if !errors.Is(err, qerr.InvalidParameter) {
		t.Fatalf("expected InvalidParameter, got %v", err)
	}
	if !sink.closed {
		t.Fatalf("sink left open")
	}
}

func TestNewClosesSinkOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		empty bool
		sink  *memSink
		kind  qerr.Kind
	}{
		{"empty catalog", true, &memSink{accept: []audio.Format{audio.S32LE}}, qerr.InvalidData},
		{"init fails", false, &memSink{fail: qerr.New(qerr.AllocationFailure, "mem init", "no device")}, qerr.AllocationFailure},
		{"rate mismatch", false, &memSink{accept: []audio.Format{audio.S32LE}, rate: 48000}, qerr.InvalidParameter},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cat *intwt.Catalog
			if tc.empty {
				var err error
				cat, err = intwt.ParseCatalog(strings.NewReader(intwt.TableHeader+"\n"), t.TempDir())
				if err != nil {
					t.Fatal(err)
				}
			} else {
				cat = loadCatalog(t, writeInstrument(t, ramp(10), 0))
			}
			defer cat.Close()
			if _, err := New(cat, tc.sink); !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if !tc.sink.closed {
				t.Fatalf("sink left open")
			}
		})
	}
}
