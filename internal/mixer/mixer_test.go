package mixer

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/cbegin/qinwave-go/internal/audio"
	"github.com/cbegin/qinwave-go/internal/qerr"
	"github.com/cbegin/qinwave-go/internal/wavetable"
)

func TestMixUnityClips(t *testing.T) {
	dst := []int32{1, -5, math.MaxInt32 - 10, math.MinInt32 + 10}
	src := []int32{2, 3, 100, -100}
	if err := Mix(dst, src, len(dst), MaxVolume); err != nil {
		t.Fatal(err)
	}
	want := []int32{3, -2, math.MaxInt32, math.MinInt32}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestMixScalesByVolume(t *testing.T) {
	dst := []int32{10, 10}
	src := []int32{256, -256}
	if err := Mix(dst, src, 2, 64); err != nil {
		t.Fatal(err)
	}
	if dst[0] != 138 || dst[1] != -118 {
		t.Fatalf("got %v", dst)
	}
}

func TestMixZeroVolumeLeavesDst(t *testing.T) {
	dst := []int32{7, 8, 9}
	err := Mix(dst, []int32{1, 1, 1}, 3, 0)
	if !errors.Is(err, qerr.InvalidParameter) {
		t.Fatalf("expected InvalidParameter, got %v", err)
	}
	if dst[0] != 7 || dst[1] != 8 || dst[2] != 9 {
		t.Fatalf("dst changed: %v", dst)
	}
}

func TestMixShortBuffers(t *testing.T) {
	if err := Mix(make([]int32, 2), make([]int32, 4), 3, MaxVolume); !errors.Is(err, qerr.BufferOverflow) {
		t.Fatalf("expected BufferOverflow, got %v", err)
	}
}

func TestResampleTruncatesLowBytes(t *testing.T) {
	src := []int32{0x11223344, -2}
	tests := []struct {
		f    audio.Format
		want []byte
	}{
		{audio.S8, []byte{0x11, 0xFF}},
		{audio.S16LE, []byte{0x22, 0x11, 0xFF, 0xFF}},
		{audio.S16BE, []byte{0x11, 0x22, 0xFF, 0xFF}},
		{audio.S24LE, []byte{0x33, 0x22, 0x11, 0xFF, 0xFF, 0xFF}},
		{audio.S32LE, []byte{0x44, 0x33, 0x22, 0x11, 0xFE, 0xFF, 0xFF, 0xFF}},
		{audio.S32BE, []byte{0x11, 0x22, 0x33, 0x44, 0xFF, 0xFF, 0xFF, 0xFE}},
	}
	for _, tc := range tests {
		t.Run(tc.f.String(), func(t *testing.T) {
			dst := make([]byte, 8)
			n, err := Resample(dst, src, 2, tc.f)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dst[:n], tc.want) {
				t.Fatalf("got % x, want % x", dst[:n], tc.want)
			}
		})
	}
}

func TestResampleErrors(t *testing.T) {
	src := make([]int32, 4)
	if _, err := Resample(make([]byte, 16), src, 4, audio.Format{Bits: 20}); !errors.Is(err, qerr.InvalidParameter) {
		t.Fatalf("bad width: %v", err)
	}
	if _, err := Resample(make([]byte, 7), src, 4, audio.S16LE); !errors.Is(err, qerr.BufferOverflow) {
		t.Fatalf("short dst: %v", err)
	}
}

// Widening a native stream and packing it back at the same width is lossless.
func TestWidenResampleRoundTrip(t *testing.T) {
	formats := []audio.Format{audio.S8, audio.S16LE, audio.S16BE, audio.S24LE, audio.S24BE, audio.S32LE, audio.S32BE}
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			w := f.Bytes()
			in := make([]byte, 64*w)
			for i := range in {
				in[i] = byte(i*37 + 11)
			}
			wide := make([]int32, 64)
			wavetable.Widen(wide, in, w, f.BigEndian)
			out := make([]byte, len(in))
			n, err := Resample(out, wide, len(wide), f)
			if err != nil {
				t.Fatal(err)
			}
			if n != len(in) || !bytes.Equal(out, in) {
				t.Fatalf("round trip differs")
			}
		})
	}
}
