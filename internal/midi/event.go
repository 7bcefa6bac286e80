// Package midi holds the MIDI event surface consumed by the synth: the event
// type, the instrument note table, the input queue and the driver adapters.
package midi

import "fmt"

// Type is the MIDI status of an event (channel nibble cleared).
type Type uint8

const (
	NoteOff         Type = 0x80
	NoteOn          Type = 0x90
	KeyPressure     Type = 0xA0
	ControlChange   Type = 0xB0
	ProgramChange   Type = 0xC0
	ChannelPressure Type = 0xD0
	PitchBend       Type = 0xE0
	SysEx           Type = 0xF0
	TimeCode        Type = 0xF1
	SongPosition    Type = 0xF2
	SongSelect      Type = 0xF3
	TuneRequest     Type = 0xF6
	Clock           Type = 0xF8
	Start           Type = 0xFA
	Continue        Type = 0xFB
	Stop            Type = 0xFC
	ActiveSensing   Type = 0xFE
	SystemReset     Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case NoteOff:
		return "note off"
	case NoteOn:
		return "note on"
	case KeyPressure:
		return "key pressure"
	case ControlChange:
		return "control change"
	case ProgramChange:
		return "program change"
	case ChannelPressure:
		return "channel pressure"
	case PitchBend:
		return "pitch bend"
	case SysEx:
		return "sysex"
	case SongPosition:
		return "song position"
	case SongSelect:
		return "song select"
	case ActiveSensing:
		return "active sensing"
	}
	return fmt.Sprintf("type 0x%02X", uint8(t))
}

// Event is a decoded MIDI message. Param holds key/velocity for note events,
// controller/value for control changes and the 14-bit value for pitch bend.
type Event struct {
	Type    Type
	Channel uint8
	Param   [2]int16
	SysEx   []byte
}

func NewNoteOn(channel uint8, key, velocity int16) Event {
	return Event{Type: NoteOn, Channel: channel, Param: [2]int16{key, velocity}}
}

func NewNoteOff(channel uint8, key int16) Event {
	return Event{Type: NoteOff, Channel: channel, Param: [2]int16{key, 0}}
}

func (e Event) Key() int16 { return e.Param[0] }

// Velocity is masked to seven bits.
func (e Event) Velocity() int { return int(e.Param[1] & 0x7F) }

func (e Event) Controller() uint8 { return uint8(e.Param[0] & 0x7F) }
func (e Event) Value() uint8 { return uint8(e.Param[1]) }
func (e Event) Program() uint8 { return uint8(e.Param[0]) }
func (e Event) Bend() int16 { return e.Param[0] }

func (e Event) String() string {
	switch e.Type {
	case NoteOn, NoteOff:
		return fmt.Sprintf("%s: channel = %d, key = %d, velocity = %d", e.Type, e.Channel, e.Key(), e.Velocity())
	case PitchBend:
		return fmt.Sprintf("pitch bend: channel = %d, value = %d", e.Channel, e.Bend())
	case ControlChange:
		return fmt.Sprintf("control change: channel = %d, controller = %d, value = %d", e.Channel, e.Controller(), e.Value())
	case ProgramChange, SongPosition, SongSelect:
		return fmt.Sprintf("%s: param0 = %04x", e.Type, uint16(e.Param[0]))
	case SysEx:
		return fmt.Sprintf("sysex: %d bytes", len(e.SysEx))
	}
	return e.Type.String()
}
