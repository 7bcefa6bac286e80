package effects

import "fmt"

// EnvMax is the full-scale envelope level.
const EnvMax = 256

// EnvState is the stage of an ADSR envelope.
type EnvState int

const (
	EnvIdle EnvState = iota
	EnvAttack
	EnvDecay
	EnvSustain
	EnvRelease
)

func (s EnvState) String() string {
	switch s {
	case EnvIdle:
		return "idle"
	case EnvAttack:
		return "attack"
	case EnvDecay:
		return "decay"
	case EnvSustain:
		return "sustain"
	case EnvRelease:
		return "release"
	}
	return fmt.Sprintf("env(%d)", int(s))
}

const (
	adsrAttack = iota
	adsrDecay
	adsrSustain
	adsrRelease
)

var adsrParams = []Param{
	{Name: "Attack time", Label: "ms", Default: 500, Min: 0, Max: 20000},
	{Name: "Decay time", Label: "ms", Default: 2000, Min: 0, Max: 20000},
	{Name: "Sustain level", Label: "%", Default: 88, Min: 0, Max: 100},
	{Name: "Release time", Label: "ms", Default: 30, Min: 0, Max: 20000},
}

// ADSR is a linear integer envelope. Each stage moves the level by one step
// every rate frames, where rate is ms*sampleRate/1000/EnvMax.
type ADSR struct {
	core

	attackRate   int
	decayRate    int
	releaseRate  int
	sustainLevel int

	state  EnvState
	accum  int
	output int
}

// NewADSR creates an envelope with default timing.
func NewADSR(sampleRate, channels int) *ADSR {
	a := &ADSR{core: newCore(sampleRate, channels, adsrParams)}
	a.update()
	return a
}

func (a *ADSR) Name() string { return "ADSR" }
func (a *ADSR) ShortName() string { return "adsr" }

func (a *ADSR) Clone() Effector {
	c := &ADSR{core: a.core.clone()}
	c.update()
	return c
}

func (a *ADSR) Init() error {
	a.update()
	a.bypass = false
	a.Reset()
	return nil
}

func (a *ADSR) Reset() {
	a.state = EnvIdle
	a.accum = 0
	a.output = 0
}

func (a *ADSR) SetParam(i int, v float64) error {
	if err := a.setValue(i, v); err != nil {
		return err
	}
	a.update()
	return nil
}

func (a *ADSR) update() {
	a.attackRate = int(a.values[adsrAttack]) * a.rate / 1000 / EnvMax
	a.decayRate = int(a.values[adsrDecay]) * a.rate / 1000 / EnvMax
	a.releaseRate = int(a.values[adsrRelease]) * a.rate / 1000 / EnvMax
	a.sustainLevel = int(a.values[adsrSustain]) * EnvMax / 100
}

// Gate starts the attack on true and the release on false.
func (a *ADSR) Gate(on bool) {
	if on {
		a.state = EnvAttack
	} else if a.state != EnvIdle {
		a.state = EnvRelease
	}
}

func (a *ADSR) State() EnvState { return a.state }

// Level is the current envelope output in [0, EnvMax].
func (a *ADSR) Level() int { return a.output }

// tick advances the envelope by one frame.
func (a *ADSR) tick() int {
	a.accum++
	switch a.state {
	case EnvAttack:
		if a.accum < a.attackRate {
			break
		}
		a.accum = 0
		a.output++
		if a.output >= EnvMax {
			a.output = EnvMax
			a.state = EnvDecay
		}
	case EnvDecay:
		if a.accum < a.decayRate {
			break
		}
		a.accum = 0
		a.output--
		if a.output <= a.sustainLevel {
			a.output = a.sustainLevel
			a.state = EnvSustain
		}
	case EnvRelease:
		if a.accum < a.releaseRate {
			break
		}
		a.accum = 0
		a.output--
		if a.output <= 0 {
			a.output = 0
			a.state = EnvIdle
		}
	}
	return a.output
}

func (a *ADSR) Process(buf []int32, frames int) error {
	if a.bypass {
		return nil
	}
	if _, err := a.frameSpan("adsr", buf, frames); err != nil {
		return err
	}
	ch := a.channels
	for f := 0; f < frames; f++ {
		env := int64(a.tick())
		row := buf[f*ch : f*ch+ch]
		for i, s := range row {
			row[i] = int32(int64(s) * env / EnvMax)
		}
	}
	return nil
}
