package effects

import "math"

// LFO waveforms.
const (
	WaveSine = iota
	WaveTriangle
	WaveSquare
	WaveSaw
)

// lfo is a low-frequency oscillator returning values in [-depth, depth].
type lfo struct {
	depth float64
	step  float64
	wave  int
	phase float64
}

func (l *lfo) set(depth, rateHz float64, wave, sampleRate int) {
	l.depth = depth
	l.step = 0
	if sampleRate > 0 {
		l.step = rateHz / float64(sampleRate)
	}
	if wave < WaveSine || wave > WaveSaw {
		wave = WaveSine
	}
	l.wave = wave
}

func (l *lfo) reset() { l.phase = 0 }

// next returns the current value and advances one sample.
func (l *lfo) next() float64 {
	if l.depth == 0 {
		return 0
	}
	var v float64
	switch l.wave {
	case WaveTriangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case WaveSquare:
		v = 1
		if l.phase >= 0.5 {
			v = -1
		}
	case WaveSaw:
		v = 1 - 2*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.step
	for l.phase >= 1 {
		l.phase--
	}
	return v * l.depth
}
