package wavetable

import "encoding/binary"

// Widen unpacks packed signed PCM of the given byte width into int32 samples
// left-justified so the source's sign bit lands on bit 31. len(dst) samples
// are produced; src must hold at least len(dst)*width bytes.
func Widen(dst []int32, src []byte, width int, bigEndian bool) {
	switch width {
	case 1:
		for i := range dst {
			dst[i] = int32(src[i]) << 24
		}
	case 2:
		var order binary.ByteOrder = binary.LittleEndian
		if bigEndian {
			order = binary.BigEndian
		}
		for i := range dst {
			dst[i] = int32(order.Uint16(src[i*2:])) << 16
		}
	case 3:
		for i := range dst {
			b := src[i*3 : i*3+3]
			if bigEndian {
				dst[i] = int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8)
			} else {
				dst[i] = int32(uint32(b[2])<<24 | uint32(b[1])<<16 | uint32(b[0])<<8)
			}
		}
	case 4:
		var order binary.ByteOrder = binary.LittleEndian
		if bigEndian {
			order = binary.BigEndian
		}
		for i := range dst {
			dst[i] = int32(order.Uint32(src[i*4:]))
		}
	}
}

// Narrow packs left-justified int32 samples into width bytes each, keeping
// the high-order bytes. It is the inverse of Widen.
func Narrow(dst []byte, src []int32, width int, bigEndian bool) {
	for i, s := range src {
		u := uint32(s)
		b := dst[i*width : i*width+width]
		for j := 0; j < width; j++ {
			v := byte(u >> (24 - 8*j))
			if bigEndian {
				b[j] = v
			} else {
				b[width-1-j] = v
			}
		}
	}
}

// applyLevel scales samples by level/128, saturating at the int32 range.
func applyLevel(buf []int32, level int) {
	if level == maxLevel {
		return
	}
	for i, s := range buf {
		buf[i] = clip32(int64(s) * int64(level) / maxLevel)
	}
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
