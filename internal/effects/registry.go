package effects

import (
	"sort"
	"strings"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

var constructors = map[string]func(rate, channels int) Effector{
	"adsr":       func(r, c int) Effector { return NewADSR(r, c) },
	"amp":        func(r, c int) Effector { return NewAmplifier(r, c) },
	"filter":     func(r, c int) Effector { return NewFilter(r, c) },
	"delay":      func(r, c int) Effector { return NewDelay(r, c) },
	"inverter":   func(r, c int) Effector { return NewInverter(r, c) },
	"reverb":     func(r, c int) Effector { return NewReverb(r, c) },
	"compressor": func(r, c int) Effector { return NewCompressor(r, c) },
	"chorus":     func(r, c int) Effector { return NewChorus(r, c) },
}

// New returns a prototype of the named kind with default parameters.
func New(kind string, sampleRate, channels int) (Effector, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, qerr.Errorf(qerr.InvalidParameter, "new effector", "unknown kind %q", kind)
	}
	return ctor(sampleRate, channels), nil
}

// Kinds lists the registered kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// ParamIndex finds a parameter by name or short name, ignoring case and
// spaces, so "attack" matches "Attack time".
func ParamIndex(e Effector, name string) (int, error) {
	want := normalizeParam(name)
	for i, p := range e.Params() {
		full := normalizeParam(p.Name)
		if full == want || firstWord(full) == want {
			return i, nil
		}
	}
	return -1, qerr.Errorf(qerr.InvalidParameter, "param index", "%s has no parameter %q", e.ShortName(), name)
}

func normalizeParam(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
