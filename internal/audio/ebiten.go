package audio

import (
	"fmt"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedAudioContext returns the process-wide ebiten context. Ebiten allows
// one context per process, so a second rate is an error.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// EbitenSink plays through ebiten's audio context. Ebiten players take 16-bit
// little-endian stereo, so other formats are replaced with s16le and mono is
// doubled into both channels on the way out.
type EbitenSink struct {
	cfg    Config
	ring   *Ring
	reader *StreamReader
	player *ebitaudio.Player
}

func NewEbitenSink() *EbitenSink { return &EbitenSink{} }

func (s *EbitenSink) Name() string { return "ebiten" }

func (s *EbitenSink) Init(rate, channels int, f Format, latency time.Duration) error {
	const op = "ebiten init"
	if err := checkInit(op, rate, channels, f); err != nil {
		return err
	}
	if channels > 2 {
		return fmt.Errorf("%s: %d channels not supported", op, channels)
	}
	if latency <= 0 {
		latency = DefaultLatency
	}
	ctx, err := sharedAudioContext(rate)
	if err != nil {
		return err
	}

	s.cfg = Config{SampleRate: rate, Channels: channels, Format: S16LE, Latency: latency}
	s.ring = NewRing(ringBytes(s.cfg, 4096))
	s.reader = NewStreamReader(s.ring)
	if channels == 1 {
		s.reader.expand, s.reader.unit, s.reader.convert = 2, 2, monoToStereo16
	}
	pl, err := ctx.NewPlayer(s.reader)
	if err != nil {
		return err
	}
	pl.SetBufferSize(latency)
	pl.Play()
	s.player = pl

	if f != S16LE {
		return replaced(op, f, S16LE)
	}
	return nil
}

func (s *EbitenSink) FreeSpace() int { return s.ring.Free() }

func (s *EbitenSink) Write(p []byte) (int, error) { return s.ring.Write(p), nil }

// Delay counts the ring plus the player's own buffer.
func (s *EbitenSink) Delay() time.Duration {
	return s.cfg.Duration(s.ring.Len()) + s.cfg.Latency
}

func (s *EbitenSink) Pause() {
	s.reader.SetPaused(true)
	s.player.Pause()
}

func (s *EbitenSink) Resume() {
	s.reader.SetPaused(false)
	s.player.Play()
}

func (s *EbitenSink) Reset() { s.ring.Reset() }

// Position is how far playback has progressed, as heard.
func (s *EbitenSink) Position() time.Duration {
	if s.player == nil {
		return 0
	}
	return s.player.Position()
}

func (s *EbitenSink) Close() error {
	if s.player == nil {
		return nil
	}
	s.player.Pause()
	err := s.player.Close()
	s.player = nil
	if cerr := s.reader.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *EbitenSink) Config() Config { return s.cfg }
