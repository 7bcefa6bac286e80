package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoErr     error
	otoOpts    oto.NewContextOptions
)

// sharedOtoContext creates the process-wide oto context and waits until the
// device is ready. Later calls must ask for the same stream shape.
func sharedOtoContext(opts oto.NewContextOptions) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoOpts = opts
		ctx, ready, err := oto.NewContext(&opts)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoOpts.SampleRate != opts.SampleRate || otoOpts.ChannelCount != opts.ChannelCount || otoOpts.Format != opts.Format {
		return nil, fmt.Errorf("oto context already initialized at %d Hz x%d", otoOpts.SampleRate, otoOpts.ChannelCount)
	}
	return otoContext, nil
}

// OtoSink plays through oto directly. It accepts s16le and s8 (sent to the
// device as unsigned 8-bit); other formats are replaced with s16le.
type OtoSink struct {
	cfg    Config
	ring   *Ring
	reader *StreamReader
	player *oto.Player
}

func NewOtoSink() *OtoSink { return &OtoSink{} }

func (s *OtoSink) Name() string { return "oto" }

func (s *OtoSink) Init(rate, channels int, f Format, latency time.Duration) error {
	const op = "oto init"
	if err := checkInit(op, rate, channels, f); err != nil {
		return err
	}
	if latency <= 0 {
		latency = DefaultLatency
	}
	use := f
	wire := oto.FormatSignedInt16LE
	switch f {
	case S16LE:
	case S8:
		wire = oto.FormatUnsignedInt8
	default:
		use = S16LE
	}
	ctx, err := sharedOtoContext(oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       wire,
		BufferSize:   latency,
	})
	if err != nil {
		return err
	}

	s.cfg = Config{SampleRate: rate, Channels: channels, Format: use, Latency: latency}
	s.ring = NewRing(ringBytes(s.cfg, 4096))
	s.reader = NewStreamReader(s.ring)
	if use == S8 {
		s.reader.convert = signedToUnsigned8
	}
	s.player = ctx.NewPlayer(s.reader)
	s.player.Play()

	if use != f {
		return replaced(op, f, use)
	}
	return nil
}

func (s *OtoSink) FreeSpace() int { return s.ring.Free() }

func (s *OtoSink) Write(p []byte) (int, error) { return s.ring.Write(p), nil }

// Delay counts the ring plus what the player has pulled but not yet played.
func (s *OtoSink) Delay() time.Duration {
	return s.cfg.Duration(s.ring.Len() + s.player.BufferedSize())
}

func (s *OtoSink) Pause() {
	s.reader.SetPaused(true)
	s.player.Pause()
}

func (s *OtoSink) Resume() {
	s.reader.SetPaused(false)
	s.player.Play()
}

func (s *OtoSink) Reset() { s.ring.Reset() }

func (s *OtoSink) Close() error {
	if s.player == nil {
		return nil
	}
	s.player.Pause()
	err := s.player.Close()
	s.player = nil
	return err
}

func (s *OtoSink) Config() Config { return s.cfg }
