package audio

import (
	"time"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

// Config is the stream shape a sink negotiated in Init.
type Config struct {
	SampleRate int
	Channels   int
	Format     Format
	Latency    time.Duration
}

// BytesPerSecond is the byte rate of the configured stream.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * c.Format.Bytes()
}

// FrameBytes is the size of one interleaved frame.
func (c Config) FrameBytes() int { return c.Channels * c.Format.Bytes() }

// Duration converts a byte count of this stream into playback time.
func (c Config) Duration(n int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// Sink is an audio output the render loop writes into. Init may settle on a
// different format than requested; it then returns an error of kind
// qerr.Replaced and Config reports the format in use.
type Sink interface {
	Init(rate, channels int, f Format, latency time.Duration) error
	// FreeSpace is the number of bytes Write accepts without blocking.
	FreeSpace() int
	Write(p []byte) (int, error)
	// Delay is the time until the last written byte is heard.
	Delay() time.Duration
	Pause()
	Resume()
	// Reset drops everything buffered.
	Reset()
	Close() error
	Name() string
	Config() Config
}

// DefaultLatency is used when Init is given no latency.
const DefaultLatency = 100 * time.Millisecond

func checkInit(op string, rate, channels int, f Format) error {
	if rate <= 0 || channels <= 0 {
		return qerr.Errorf(qerr.InvalidParameter, op, "rate %d channels %d", rate, channels)
	}
	if !f.Valid() {
		return qerr.Errorf(qerr.InvalidParameter, op, "format %s", f)
	}
	return nil
}

func replaced(op string, want, got Format) error {
	return qerr.Errorf(qerr.Replaced, op, "%s not supported, using %s", want, got)
}

// ringBytes sizes a ring to hold latency worth of cfg's stream, at least
// minBytes and a whole number of frames.
func ringBytes(cfg Config, minBytes int) int {
	n := int(int64(cfg.BytesPerSecond()) * int64(cfg.Latency) / int64(time.Second))
	if n < minBytes {
		n = minBytes
	}
	fb := cfg.FrameBytes()
	return n / fb * fb
}
