package midi

import "strings"

// Note indexes the instrument's playable pitches. The instrument is tuned
// pentatonically, so only 21 MIDI keys map to a note.
type Note int

const (
	NoteInvalid Note = iota
	NoteD1
	NoteE1
	NoteFS1
	NoteA1
	NoteB1
	NoteD2
	NoteE2
	NoteFS2
	NoteA2
	NoteB2
	NoteD3
	NoteE3
	NoteFS3
	NoteA3
	NoteB3
	NoteD4
	NoteE4
	NoteFS4
	NoteA4
	NoteB4
	NoteD5
	MaxNote
)

// MaxPolyphony is the number of independent playback units.
const MaxPolyphony = 16

var noteNames = [MaxNote]string{
	"", "d1", "e1", "f#1", "a1", "b1",
	"d2", "e2", "f#2", "a2", "b2",
	"d3", "e3", "f#3", "a3", "b3",
	"d4", "e4", "f#4", "a4", "b4",
	"d5",
}

var keyTable = [MaxNote]int16{
	0, 36, 38, 40, 41, 43,
	45, 47, 48, 50, 52,
	53, 55, 57, 59, 60,
	62, 64, 65, 67, 69,
	71,
}

func (n Note) Valid() bool { return n > NoteInvalid && n < MaxNote }

func (n Note) String() string {
	if !n.Valid() {
		return "invalid"
	}
	return noteNames[n]
}

// MapNote returns the note played by a MIDI key, or NoteInvalid.
func MapNote(key int16) Note {
	for n := NoteD1; n < MaxNote; n++ {
		if keyTable[n] == key {
			return n
		}
	}
	return NoteInvalid
}

// MapKey is the inverse of MapNote. Invalid notes map to key 0.
func MapKey(n Note) int16 {
	if !n.Valid() {
		return 0
	}
	return keyTable[n]
}

// ParseNote matches a descriptor note name such as "f#3", ignoring case.
func ParseNote(s string) Note {
	for n := NoteD1; n < MaxNote; n++ {
		if strings.EqualFold(s, noteNames[n]) {
			return n
		}
	}
	return NoteInvalid
}
