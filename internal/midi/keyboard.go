package midi

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// keyboardLayout assigns the instrument's notes to two rows of a QWERTY
// keyboard, lowest note first.
const keyboardLayout = "zxcvbnm,./asdfghjkl;'"

// KeyEvent maps a typed byte to a NoteOn at velocity. Digits 1-9 are not
// notes and report ok=false; use KeyVelocity for them.
func KeyEvent(b byte, velocity int16) (Event, bool) {
	for i := 0; i < len(keyboardLayout); i++ {
		if keyboardLayout[i] == b {
			return NewNoteOn(0, MapKey(NoteD1+Note(i)), velocity), true
		}
	}
	return Event{}, false
}

// KeyVelocity maps the digits 1-9 to a velocity step.
func KeyVelocity(b byte) (int16, bool) {
	if b < '1' || b > '9' {
		return 0, false
	}
	return int16(b-'0') * 127 / 9, true
}

// Keyboard turns a raw terminal into a note source. Terminals do not report
// key release, so each key press only sends a NoteOn.
type Keyboard struct {
	in       io.Reader
	fd       int
	oldState *term.State
	push     func(Event) error
	quit     func()
	logf     func(string, ...any)
	velocity int16
	done     chan struct{}
	once     sync.Once
}

// NewKeyboard reads from stdin. quit is called on Esc, Ctrl-C or end of input.
func NewKeyboard(push func(Event) error, quit func(), logf func(string, ...any)) *Keyboard {
	return &Keyboard{
		in:       os.Stdin,
		fd:       int(os.Stdin.Fd()),
		push:     push,
		quit:     quit,
		logf:     logf,
		velocity: 100,
		done:     make(chan struct{}),
	}
}

// Start puts the terminal in raw mode when stdin is one, then reads keys on
// a goroutine.
func (k *Keyboard) Start() error {
	if term.IsTerminal(k.fd) {
		st, err := term.MakeRaw(k.fd)
		if err != nil {
			return err
		}
		k.oldState = st
	}
	go k.loop()
	return nil
}

func (k *Keyboard) loop() {
	defer close(k.done)
	buf := make([]byte, 1)
	for {
		n, err := k.in.Read(buf)
		if n > 0 && !k.handle(buf[0]) {
			k.quit()
			return
		}
		if err != nil {
			k.quit()
			return
		}
	}
}

// handle reports false when the key requests exit.
func (k *Keyboard) handle(b byte) bool {
	switch b {
	case 0x03, 0x1B:
		return false
	}
	if v, ok := KeyVelocity(b); ok {
		k.velocity = v
		return true
	}
	ev, ok := KeyEvent(b, k.velocity)
	if !ok {
		return true
	}
	if err := k.push(ev); err != nil && k.logf != nil {
		k.logf("keyboard: dropped %s: %v", ev, err)
	}
	return true
}

// Stop restores the terminal. The reader goroutine ends with the process.
func (k *Keyboard) Stop() {
	k.once.Do(func() {
		if k.oldState != nil {
			_ = term.Restore(k.fd, k.oldState)
		}
	})
}
