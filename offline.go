package qinwave

import (
	"sort"
	"time"

	"github.com/cbegin/qinwave-go/internal/audio"
	"github.com/cbegin/qinwave-go/internal/midi"
	intwt "github.com/cbegin/qinwave-go/internal/wavetable"
)

// TimedEvent is an event scheduled at an offset from the start of a render.
type TimedEvent struct {
	At    time.Duration
	Event midi.Event
}

// RenderToWAV plays events through the full pipeline into a WAV file at path
// and returns the number of frames written. Events take effect on the next
// burst boundary at or after their offset; a smaller WithBurst tightens the
// timing. The catalog stays open.
func RenderToWAV(cat *intwt.Catalog, path string, events []TimedEvent, length time.Duration, opts ...Option) (int, error) {
	sink := audio.NewWAVSink(path)
	s, err := New(cat, sink, opts...)
	if err != nil {
		return 0, err
	}

	sorted := append([]TimedEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	frameBytes := int64(s.out.FrameBytes())
	total := frameBytes * s.frames(length)
	next := 0
	for s.written < total {
		for next < len(sorted) && s.offset(sorted[next].At) <= s.written {
			if err := s.handle(sorted[next].Event); err != nil {
				_ = s.closeOutput()
				return 0, err
			}
			next++
		}
		pad := int(min(int64(s.burst), total-s.written))
		if _, err := s.pump(pad); err != nil {
			_ = s.closeOutput()
			return 0, err
		}
	}
	if err := s.closeOutput(); err != nil {
		return 0, err
	}
	return int(s.written / frameBytes), nil
}

// offset converts a time offset into a frame-aligned output byte position.
func (s *Synth) offset(at time.Duration) int64 {
	return s.frames(at) * int64(s.out.FrameBytes())
}

// frames is the number of whole frames in d. Seconds and the remainder are
// scaled separately so long renders do not overflow.
func (s *Synth) frames(d time.Duration) int64 {
	rate := int64(s.out.SampleRate)
	sec, rem := int64(d/time.Second), int64(d%time.Second)
	return sec*rate + rem*rate/int64(time.Second)
}
