package audio

import "sync"

// StreamReader feeds a backend player from a Ring. Underruns and pauses read
// as silence so the backend never stalls. An optional convert hook rewrites
// ring bytes into the player's wire format.
type StreamReader struct {
	mu      sync.Mutex
	ring    *Ring
	paused  bool
	scratch []byte
	// expand is how many player bytes one ring byte becomes; unit is the
	// ring-side sample size convert works on.
	expand  int
	unit    int
	convert func(dst, src []byte)
}

func NewStreamReader(ring *Ring) *StreamReader {
	return &StreamReader{ring: ring, expand: 1, unit: 1}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		clear(p)
		return len(p), nil
	}
	if r.convert == nil {
		n := r.ring.Read(p)
		clear(p[n:])
		return len(p), nil
	}
	need := len(p) / r.expand
	need -= need % r.unit
	if cap(r.scratch) < need {
		r.scratch = make([]byte, need)
	}
	src := r.scratch[:need]
	n := r.ring.Read(src)
	clear(src[n:])
	r.convert(p[:need*r.expand], src)
	clear(p[need*r.expand:])
	return len(p), nil
}

func (r *StreamReader) SetPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()
}

func (r *StreamReader) Close() error { return nil }

// monoToStereo16 duplicates each 16-bit sample into both channels.
func monoToStereo16(dst, src []byte) {
	for i := 0; i+1 < len(src); i += 2 {
		j := i * 2
		dst[j], dst[j+1] = src[i], src[i+1]
		dst[j+2], dst[j+3] = src[i], src[i+1]
	}
}

// signedToUnsigned8 flips the sign bit of 8-bit samples.
func signedToUnsigned8(dst, src []byte) {
	for i, b := range src {
		dst[i] = b ^ 0x80
	}
}
