package qinwave

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/qinwave-go/internal/audio"
	intfx "github.com/cbegin/qinwave-go/internal/effects"
	"github.com/cbegin/qinwave-go/internal/mixer"
	"github.com/cbegin/qinwave-go/internal/qerr"
)

// Config is an instrument setup: output preferences plus the effect chains.
//
//	volume: 128
//	latency: 50ms
//	format: s32le
//	effects:
//	  - kind: adsr
//	    scope: group
//	    params: {attack: 20, release: 300}
//	  - kind: filter
//	    scope: instrument
//	    params: {freq: 4000, class: lowpass}
type Config struct {
	Volume    int            `yaml:"volume"`
	Latency   string         `yaml:"latency"`
	Format    string         `yaml:"format"`
	Polyphony int            `yaml:"polyphony"`
	Effects   []EffectConfig `yaml:"effects"`
}

// EffectConfig adds one effector. Params are keyed by parameter name or its
// first word; values may be numbers or numeric strings.
type EffectConfig struct {
	Kind   string         `yaml:"kind"`
	Scope  string         `yaml:"scope"`
	Bypass bool           `yaml:"bypass"`
	Params map[string]any `yaml:"params"`
}

// DefaultConfig plays at unity volume with a bypassed per-voice envelope, so
// samples sound exactly as recorded until the envelope is switched on.
func DefaultConfig() Config {
	return Config{
		Volume: mixer.MaxVolume,
		Effects: []EffectConfig{
			{Kind: "adsr", Scope: "group", Bypass: true},
		},
	}
}

// LoadConfig reads a YAML instrument file. Fields left out keep their
// DefaultConfig values; an effects list replaces the default chain.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, qerr.Wrap(qerr.FileOpenFailure, "load config", err)
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(raw []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, qerr.Wrap(qerr.InvalidFormat, "parse config", err)
	}
	if cfg.Volume < 0 || cfg.Volume > mixer.MaxVolume {
		return Config{}, qerr.Errorf(qerr.OutOfRange, "parse config", "volume %d", cfg.Volume)
	}
	if _, err := cfg.latency(); err != nil {
		return Config{}, err
	}
	if _, err := cfg.format(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) latency() (time.Duration, error) {
	if c.Latency == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Latency)
	if err != nil || d < 0 {
		return 0, qerr.Errorf(qerr.InvalidNumber, "parse config", "latency %q", c.Latency)
	}
	return d, nil
}

func (c Config) format() (audio.Format, error) {
	if c.Format == "" {
		return audio.Format{}, nil
	}
	return audio.ParseFormat(c.Format)
}

// Options turns the file into synth options.
func (c Config) Options() []Option {
	opts := []Option{WithVolume(c.Volume), WithEffects(c.Effects)}
	if d, err := c.latency(); err == nil && d > 0 {
		opts = append(opts, WithLatency(d))
	}
	if f, err := c.format(); err == nil && f.Valid() {
		opts = append(opts, WithOutputFormat(f))
	}
	if c.Polyphony > 0 {
		opts = append(opts, WithPolyphony(c.Polyphony))
	}
	return opts
}

// buildEffects adds every configured effector to fx in file order.
func buildEffects(fx *intfx.Effectors, configured []EffectConfig, rate, channels int) error {
	for i, ec := range configured {
		proto, err := newEffect(ec, rate, channels)
		if err != nil {
			return fmt.Errorf("effect %d: %w", i, err)
		}
		scope := intfx.ScopeGroup
		if ec.Scope != "" {
			if scope, err = intfx.ParseScope(ec.Scope); err != nil {
				return fmt.Errorf("effect %d: %w", i, err)
			}
		}
		if err := fx.Add(scope, proto); err != nil {
			return fmt.Errorf("effect %d: %w", i, err)
		}
		if !ec.Bypass {
			continue
		}
		// Init clears bypass, so it is applied to the fresh instances.
		if scope == intfx.ScopeInstrument {
			lastEffect(fx.Instrument()).SetBypass(true)
			continue
		}
		for v := 0; v < fx.Polyphony(); v++ {
			lastEffect(fx.Group(v)).SetBypass(true)
		}
	}
	return nil
}

func newEffect(ec EffectConfig, rate, channels int) (intfx.Effector, error) {
	proto, err := intfx.New(strings.ToLower(strings.TrimSpace(ec.Kind)), rate, channels)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ec.Params))
	for name := range ec.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		idx, err := intfx.ParamIndex(proto, name)
		if err != nil {
			return nil, err
		}
		v, err := paramValue(proto, idx, ec.Params[name])
		if err != nil {
			return nil, err
		}
		if err := proto.SetParam(idx, v); err != nil {
			return nil, err
		}
	}
	return proto, nil
}

// paramValue coerces a YAML scalar. The filter class also accepts its name.
func paramValue(e intfx.Effector, idx int, raw any) (float64, error) {
	if s, ok := raw.(string); ok && e.ShortName() == "filter" && e.Params()[idx].Name == "Class" {
		if class, err := intfx.ParseFilterClass(s); err == nil {
			return float64(class), nil
		}
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, qerr.Errorf(qerr.InvalidNumber, "effect param", "%s %s: %v", e.ShortName(), e.Params()[idx].Name, err)
	}
	return v, nil
}

func lastEffect(c *intfx.Chain) intfx.Effector {
	all := c.Effects()
	return all[len(all)-1]
}
