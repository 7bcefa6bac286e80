package audio

import (
	"sync"
	"time"
)

const (
	nullBufferSize = 65536
	nullOutburst   = 1024
)

// NullSink discards audio at the stream's real-time byte rate. It paces the
// render loop the way a device would, without producing sound.
type NullSink struct {
	mu       sync.Mutex
	cfg      Config
	buffered int
	last     time.Time
	paused   bool
	now      func() time.Time
}

// NewNullSink uses the wall clock.
func NewNullSink() *NullSink { return &NullSink{now: time.Now} }

// NewNullSinkClock drains against now, for tests.
func NewNullSinkClock(now func() time.Time) *NullSink { return &NullSink{now: now} }

func (s *NullSink) Name() string { return "null" }

func (s *NullSink) Init(rate, channels int, f Format, latency time.Duration) error {
	if err := checkInit("null init", rate, channels, f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = Config{SampleRate: rate, Channels: channels, Format: f, Latency: latency}
	s.buffered = 0
	s.last = s.now()
	return nil
}

// drain removes what the imaginary device played since the last call.
func (s *NullSink) drain() {
	now := s.now()
	if s.paused {
		s.last = now
		return
	}
	played := int(int64(now.Sub(s.last)) * int64(s.cfg.BytesPerSecond()) / int64(time.Second))
	if played <= 0 {
		return
	}
	s.buffered -= played
	if s.buffered < 0 {
		s.buffered = 0
	}
	s.last = now
}

func (s *NullSink) FreeSpace() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drain()
	return nullBufferSize - s.buffered
}

// Write accepts whole bursts only.
func (s *NullSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxBursts := (nullBufferSize - s.buffered) / nullOutburst
	bursts := len(p) / nullOutburst
	if bursts > maxBursts {
		bursts = maxBursts
	}
	n := bursts * nullOutburst
	s.buffered += n
	return n, nil
}

func (s *NullSink) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drain()
	return s.cfg.Duration(s.buffered)
}

func (s *NullSink) Pause() {
	s.mu.Lock()
	s.drain()
	s.paused = true
	s.mu.Unlock()
}

func (s *NullSink) Resume() {
	s.mu.Lock()
	s.paused = false
	s.last = s.now()
	s.mu.Unlock()
}

func (s *NullSink) Reset() {
	s.mu.Lock()
	s.buffered = 0
	s.mu.Unlock()
}

func (s *NullSink) Close() error { return nil }

func (s *NullSink) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
