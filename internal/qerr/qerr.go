// Package qerr defines the status kinds shared by the synth packages.
package qerr

import "fmt"

// Kind classifies a failure. Kinds are comparable with errors.Is against any
// error produced by this package.
type Kind int

const (
	Success Kind = iota
	// Replaced reports success using a fallback configuration.
	Replaced
	AllocationFailure
	BufferOverflow
	FileOpenFailure
	FileReadFailure
	InvalidFormat
	InvalidParameter
	InvalidNumber
	InvalidData
	OutOfRange
	QueueFull
	QueueEmpty
)

var kindNames = [...]string{
	Success:           "success",
	Replaced:          "replaced",
	AllocationFailure: "allocation failure",
	BufferOverflow:    "buffer overflow",
	FileOpenFailure:   "file open failure",
	FileReadFailure:   "file read failure",
	InvalidFormat:     "invalid format",
	InvalidParameter:  "invalid parameter",
	InvalidNumber:     "invalid number",
	InvalidData:       "invalid data",
	OutOfRange:        "out of range",
	QueueFull:         "queue full",
	QueueEmpty:        "queue empty",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error lets a bare Kind be used as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if s != "" {
		s += ": "
	}
	if e.Msg != "" {
		s += e.Msg
	} else {
		s += e.Kind.String()
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind target or another *Error of the same kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind carried by err, or InvalidData for foreign errors
// and Success for nil.
func KindOf(err error) Kind {
	if err == nil {
		return Success
	}
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Kind
		case Kind:
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return InvalidData
}
