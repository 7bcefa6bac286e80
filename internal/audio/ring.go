package audio

import "sync"

// Ring is a fixed-capacity byte FIFO shared between the render loop and a
// backend's playback goroutine.
type Ring struct {
	mu   sync.Mutex
	buf  []byte
	head int
	size int
}

func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Write copies as much of p as fits and returns the count.
func (r *Ring) Write(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.buf) - r.size
	if n > len(p) {
		n = len(p)
	}
	tail := (r.head + r.size) % len(r.buf)
	c := copy(r.buf[tail:], p[:n])
	copy(r.buf, p[c:n])
	r.size += n
	return n
}

// Read moves up to len(p) bytes out of the ring.
func (r *Ring) Read(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	c := copy(p[:n], r.buf[r.head:])
	copy(p[c:n], r.buf)
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	return n
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *Ring) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf) - r.size
}

func (r *Ring) Cap() int { return len(r.buf) }

func (r *Ring) Reset() {
	r.mu.Lock()
	r.head, r.size = 0, 0
	r.mu.Unlock()
}
