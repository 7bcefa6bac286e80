package qinwave

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/cbegin/qinwave-go/internal/audio"
	"github.com/cbegin/qinwave-go/internal/midi"
)

func TestRenderToWAV(t *testing.T) {
	pcm := ramp(2000)
	cat := loadCatalog(t, writeInstrument(t, pcm, 0))
	defer cat.Close()

	out := filepath.Join(t.TempDir(), "take.wav")
	events := []TimedEvent{
		{At: 0, Event: noteOn(64)},
		{At: time.Second, Event: midi.NewNoteOff(0, midi.MapKey(midi.NoteD1))},
	}
	frames, err := RenderToWAV(cat, out, events, 100*time.Millisecond, WithOutputFormat(audio.S16LE), WithBurst(256))
	if err != nil {
		t.Fatal(err)
	}
	if frames != 4410 {
		t.Fatalf("frames = %d, want 4410", frames)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != 44100 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("header %d Hz x%d %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != 4410 {
		t.Fatalf("decoded %d samples", len(buf.Data))
	}
	for i := 0; i < 2000; i++ {
		want := int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		if buf.Data[i] != want {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], want)
		}
	}
	for i := 2000; i < len(buf.Data); i++ {
		if buf.Data[i] != 0 {
			t.Fatalf("sample %d = %d after the note ended", i, buf.Data[i])
		}
	}
}

func TestRenderToWAVDelaysEvents(t *testing.T) {
	pcm := ramp(100)
	cat := loadCatalog(t, writeInstrument(t, pcm, 0))
	defer cat.Close()

	out := filepath.Join(t.TempDir(), "late.wav")
	// 256-byte bursts are 128 frames; 10ms is frame 441, played from the
	// burst starting at frame 512.
	events := []TimedEvent{{At: 10 * time.Millisecond, Event: noteOn(64)}}
	if _, err := RenderToWAV(cat, out, events, 20*time.Millisecond, WithOutputFormat(audio.S16LE), WithBurst(256)); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 512; i++ {
		if buf.Data[i] != 0 {
			t.Fatalf("sample %d = %d before the note", i, buf.Data[i])
		}
	}
	if first := int(int16(binary.LittleEndian.Uint16(pcm))); buf.Data[512] != first {
		t.Fatalf("sample 512 = %d, want %d", buf.Data[512], first)
	}
}

func TestFramesDoNotOverflowLongRenders(t *testing.T) {
	s := &Synth{out: audio.Config{SampleRate: 48000, Channels: 2, Format: audio.S32LE}}
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{10 * time.Millisecond, 480},
		{1500 * time.Millisecond, 72000},
		{10 * time.Hour, 10 * 3600 * 48000},
		{1000 * time.Hour, 1000 * 3600 * 48000},
	}
	for _, tc := range tests {
		if got := s.frames(tc.d); got != tc.want {
			t.Fatalf("frames(%v) = %d, want %d", tc.d, got, tc.want)
		}
		if got := s.offset(tc.d); got != tc.want*8 {
			t.Fatalf("offset(%v) = %d, want %d", tc.d, got, tc.want*8)
		}
	}
}
