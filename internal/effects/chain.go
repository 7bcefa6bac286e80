package effects

import (
	"fmt"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

// Chain applies a sequence of effectors in insertion order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

// Process runs every effector over frames frames and stops at the first
// failure.
func (c *Chain) Process(buf []int32, frames int) error {
	for _, e := range c.effects {
		if err := e.Process(buf, frames); err != nil {
			return fmt.Errorf("%s: %w", e.ShortName(), err)
		}
	}
	return nil
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Gate(on bool) {
	for _, e := range c.effects {
		e.Gate(on)
	}
}

func (c *Chain) SetBypass(bypass bool) {
	for _, e := range c.effects {
		e.SetBypass(bypass)
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// Effects returns the chain's effectors in order.
func (c *Chain) Effects() []Effector { return c.effects }

// Clear uninitializes and drops every effector.
func (c *Chain) Clear() {
	for _, e := range c.effects {
		_ = e.Uninit()
	}
	c.effects = nil
}

// Scope selects which chains an effector is added to.
type Scope int

const (
	// ScopeGroup gives every voice its own instance.
	ScopeGroup Scope = iota
	// ScopeInstrument shares one instance across the mix.
	ScopeInstrument
)

func (s Scope) String() string {
	switch s {
	case ScopeGroup:
		return "group"
	case ScopeInstrument:
		return "instrument"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope accepts "group" or "instrument".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "group", "voice":
		return ScopeGroup, nil
	case "instrument", "master":
		return ScopeInstrument, nil
	}
	return 0, qerr.Errorf(qerr.InvalidParameter, "parse scope", "unknown scope %q", s)
}

// Effectors holds one chain per voice plus the instrument chain.
type Effectors struct {
	groups     []*Chain
	instrument *Chain
}

func NewEffectors(polyphony int) *Effectors {
	groups := make([]*Chain, polyphony)
	for i := range groups {
		groups[i] = NewChain()
	}
	return &Effectors{groups: groups, instrument: NewChain()}
}

// Add clones proto into every voice chain (group scope) or once into the
// instrument chain. Each clone is initialized before it is added.
func (fx *Effectors) Add(scope Scope, proto Effector) error {
	switch scope {
	case ScopeGroup:
		clones := make([]Effector, len(fx.groups))
		for i := range fx.groups {
			e := proto.Clone()
			if err := e.Init(); err != nil {
				for _, done := range clones[:i] {
					_ = done.Uninit()
				}
				return fmt.Errorf("add %s: %w", proto.ShortName(), err)
			}
			clones[i] = e
		}
		for i, e := range clones {
			fx.groups[i].Add(e)
		}
		return nil
	case ScopeInstrument:
		e := proto.Clone()
		if err := e.Init(); err != nil {
			return fmt.Errorf("add %s: %w", proto.ShortName(), err)
		}
		fx.instrument.Add(e)
		return nil
	}
	return qerr.Errorf(qerr.InvalidParameter, "add effector", "unknown %s", scope)
}

func frames(op string, nSamples, channels int) (int, error) {
	if channels <= 0 || nSamples < 0 || nSamples%channels != 0 {
		return 0, qerr.Errorf(qerr.InvalidParameter, op, "%d samples over %d channels", nSamples, channels)
	}
	return nSamples / channels, nil
}

// ProcessGroup runs voice's chain over nSamples interleaved samples.
func (fx *Effectors) ProcessGroup(voice int, buf []int32, nSamples, channels int) error {
	const op = "process group"
	c, err := fx.group(op, voice)
	if err != nil {
		return err
	}
	n, err := frames(op, nSamples, channels)
	if err != nil {
		return err
	}
	return c.Process(buf, n)
}

// ProcessInstrument runs the instrument chain.
func (fx *Effectors) ProcessInstrument(buf []int32, nSamples, channels int) error {
	n, err := frames("process instrument", nSamples, channels)
	if err != nil {
		return err
	}
	return fx.instrument.Process(buf, n)
}

func (fx *Effectors) group(op string, voice int) (*Chain, error) {
	if voice < 0 || voice >= len(fx.groups) {
		return nil, qerr.Errorf(qerr.OutOfRange, op, "voice %d", voice)
	}
	return fx.groups[voice], nil
}

// GroupGate sends the gate signal to every effector of voice.
func (fx *Effectors) GroupGate(voice int, on bool) {
	if c, err := fx.group("group gate", voice); err == nil {
		c.Gate(on)
	}
}

// GroupBypass bypasses every effector of voice.
func (fx *Effectors) GroupBypass(voice int, bypass bool) {
	if c, err := fx.group("group bypass", voice); err == nil {
		c.SetBypass(bypass)
	}
}

// GroupReset returns every effector of voice to its initial state.
func (fx *Effectors) GroupReset(voice int) {
	if c, err := fx.group("group reset", voice); err == nil {
		c.Reset()
	}
}

// Group returns voice's chain, or nil when voice is out of range.
func (fx *Effectors) Group(voice int) *Chain {
	c, _ := fx.group("group", voice)
	return c
}

func (fx *Effectors) Instrument() *Chain { return fx.instrument }

func (fx *Effectors) Polyphony() int { return len(fx.groups) }

// Clear drops every effector from every chain.
func (fx *Effectors) Clear() {
	for _, c := range fx.groups {
		c.Clear()
	}
	fx.instrument.Clear()
}
