package midi

import (
	"fmt"
	"strings"

	gm "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// FromMessage converts a wire message into an Event. Running-status and
// realtime bytes the synth never acts on are reported with ok=false.
func FromMessage(msg gm.Message) (Event, bool) {
	var ch, key, vel, ctl, val, prog uint8
	var rel int16
	var abs uint16
	var data []byte

	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return Event{Type: NoteOn, Channel: ch, Param: [2]int16{int16(key), int16(vel)}}, true
	case msg.GetNoteOff(&ch, &key, &vel):
		return Event{Type: NoteOff, Channel: ch, Param: [2]int16{int16(key), int16(vel)}}, true
	case msg.GetPolyAfterTouch(&ch, &key, &val):
		return Event{Type: KeyPressure, Channel: ch, Param: [2]int16{int16(key), int16(val)}}, true
	case msg.GetControlChange(&ch, &ctl, &val):
		return Event{Type: ControlChange, Channel: ch, Param: [2]int16{int16(ctl), int16(val)}}, true
	case msg.GetProgramChange(&ch, &prog):
		return Event{Type: ProgramChange, Channel: ch, Param: [2]int16{int16(prog), 0}}, true
	case msg.GetAfterTouch(&ch, &val):
		return Event{Type: ChannelPressure, Channel: ch, Param: [2]int16{int16(val), 0}}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return Event{Type: PitchBend, Channel: ch, Param: [2]int16{rel, int16(abs)}}, true
	case msg.GetSysEx(&data):
		return Event{Type: SysEx, SysEx: append([]byte(nil), data...)}, true
	}
	return Event{}, false
}

// InPorts lists the input ports known to the registered driver.
func InPorts() []string {
	ins := gm.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, fmt.Sprintf("%d: %s", in.Number(), in.String()))
	}
	return names
}

// FindInPort returns the first input whose name contains fragment,
// case-insensitively.
func FindInPort(fragment string) (drivers.In, error) {
	ins := gm.GetInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("no MIDI inputs available")
	}
	lower := strings.ToLower(fragment)
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), lower) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input contains %q", fragment)
}

// Listen forwards every decodable message from in to push until stop is
// called. push runs on the driver's goroutine and must not block.
func Listen(in drivers.In, push func(Event) error, logf func(string, ...any)) (stop func(), err error) {
	return gm.ListenTo(in, func(msg gm.Message, _ int32) {
		ev, ok := FromMessage(msg)
		if !ok {
			return
		}
		if err := push(ev); err != nil && logf != nil {
			logf("midi: dropped %s: %v", ev, err)
		}
	}, gm.UseSysEx(), gm.SysExBufferSize(2048))
}

// CloseDriver releases the registered driver.
func CloseDriver() { gm.CloseDriver() }
