// Package audio defines the output sinks the synth renders into and the
// sample formats they accept.
package audio

import (
	"fmt"
	"strings"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

// Format is a packed signed integer sample format.
type Format struct {
	Bits      int
	BigEndian bool
}

var (
	S8    = Format{Bits: 8}
	S16LE = Format{Bits: 16}
	S16BE = Format{Bits: 16, BigEndian: true}
	S24LE = Format{Bits: 24}
	S24BE = Format{Bits: 24, BigEndian: true}
	S32LE = Format{Bits: 32}
	S32BE = Format{Bits: 32, BigEndian: true}
)

// ParseFormat accepts names like "s16le", "s24be" or "s8".
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, f := range []Format{S8, S16LE, S16BE, S24LE, S24BE, S32LE, S32BE} {
		if f.String() == name {
			return f, nil
		}
	}
	return Format{}, qerr.Errorf(qerr.InvalidParameter, "parse format", "unknown sample format %q", s)
}

// Bytes is the packed width of one sample.
func (f Format) Bytes() int { return f.Bits / 8 }

// Valid reports whether f is one of the supported widths.
func (f Format) Valid() bool {
	switch f.Bits {
	case 8, 16, 24, 32:
		return true
	}
	return false
}

func (f Format) String() string {
	if f.Bits == 8 {
		return "s8"
	}
	end := "le"
	if f.BigEndian {
		end = "be"
	}
	return fmt.Sprintf("s%d%s", f.Bits, end)
}
