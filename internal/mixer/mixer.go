// Package mixer sums voice buffers into the master bus and packs the master
// bus into an output device's sample format.
package mixer

import (
	"github.com/cbegin/qinwave-go/internal/audio"
	"github.com/cbegin/qinwave-go/internal/qerr"
	"github.com/cbegin/qinwave-go/internal/wavetable"
)

// MaxVolume is unity gain for Mix.
const MaxVolume = 128

// Mix adds the first n samples of src, scaled by volume/MaxVolume, into dst,
// saturating at the int32 range. A zero volume is rejected and dst is left
// untouched; callers skip silent voices instead.
func Mix(dst, src []int32, n, volume int) error {
	const op = "mix"
	if volume == 0 {
		return qerr.New(qerr.InvalidParameter, op, "zero volume")
	}
	if n > len(dst) || n > len(src) {
		return qerr.Errorf(qerr.BufferOverflow, op, "%d samples, dst %d src %d", n, len(dst), len(src))
	}
	if volume == MaxVolume {
		for i := 0; i < n; i++ {
			dst[i] = clip32(int64(dst[i]) + int64(src[i]))
		}
		return nil
	}
	for i := 0; i < n; i++ {
		dst[i] = clip32(int64(dst[i]) + int64(src[i])*int64(volume)/MaxVolume)
	}
	return nil
}

// Resample packs the first n samples of src into dst in format f, keeping the
// high-order bytes of each sample. It returns the number of bytes written.
func Resample(dst []byte, src []int32, n int, f audio.Format) (int, error) {
	const op = "resample"
	if !f.Valid() {
		return 0, qerr.Errorf(qerr.InvalidParameter, op, "format %s", f)
	}
	if n > len(src) {
		return 0, qerr.Errorf(qerr.BufferOverflow, op, "%d samples, src %d", n, len(src))
	}
	size := n * f.Bytes()
	if size > len(dst) {
		return 0, qerr.Errorf(qerr.BufferOverflow, op, "need %d bytes, have %d", size, len(dst))
	}
	wavetable.Narrow(dst[:size], src[:n], f.Bytes(), f.BigEndian)
	return size, nil
}

func clip32(v int64) int32 {
	if v > 1<<31-1 {
		return 1<<31 - 1
	}
	if v < -1<<31 {
		return -1 << 31
	}
	return int32(v)
}
