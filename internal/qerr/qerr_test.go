package qerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMatchesKind(t *testing.T) {
	err := Wrap(FileReadFailure, "render voice 3", io.ErrUnexpectedEOF)
	if !errors.Is(err, FileReadFailure) {
		t.Fatalf("expected FileReadFailure, got %v", err)
	}
	if errors.Is(err, InvalidFormat) {
		t.Fatalf("unexpected InvalidFormat match")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("cause should unwrap")
	}
}

func TestWrappedKindSurvivesFmtWrap(t *testing.T) {
	base := New(QueueFull, "push", "")
	err := fmt.Errorf("listen: %w", base)
	if !errors.Is(err, QueueFull) {
		t.Fatalf("expected QueueFull through fmt wrap")
	}
	if got := KindOf(err); got != QueueFull {
		t.Fatalf("KindOf = %v, want %v", got, QueueFull)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != Success {
		t.Fatalf("KindOf(nil) = %v", got)
	}
	if got := KindOf(errors.New("x")); got != InvalidData {
		t.Fatalf("KindOf(foreign) = %v", got)
	}
	if got := KindOf(OutOfRange); got != OutOfRange {
		t.Fatalf("KindOf(kind) = %v", got)
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(InvalidData, "load catalog", "line %d: dynamics %d out of range", 3, 200)
	want := "load catalog: line 3: dynamics 200 out of range"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if Kind(99).String() != "kind(99)" {
		t.Fatalf("unexpected unknown kind name %q", Kind(99).String())
	}
}
