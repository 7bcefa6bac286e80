package wavetable

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cbegin/qinwave-go/internal/midi"
	"github.com/cbegin/qinwave-go/internal/qerr"
)

type countingHandle struct {
	*strings.Reader
	closed *int
}

func (h countingHandle) Close() error {
	*h.closed++
	return nil
}

func TestLoadCatalogOffsetsAndCommon(t *testing.T) {
	path := writeBank(t, []testRegion{
		{note: "e1", dynamics: 64, data: ramp16(10)},
		{note: "D1", dynamics: 30, data: ramp16(20)},
		{note: "d1", dynamics: 90, data: ramp16(5)},
	})
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	if cat.Len() != 3 {
		t.Fatalf("len = %d", cat.Len())
	}
	all := cat.All()
	wantOffsets := []int64{36, 56, 96}
	for i, r := range all {
		if r.Offset != wantOffsets[i] {
			t.Fatalf("region %d offset = %d, want %d", i, r.Offset, wantOffsets[i])
		}
	}
	if got := len(cat.Regions(midi.NoteD1)); got != 2 {
		t.Fatalf("d1 regions = %d", got)
	}
	if c := cat.Common(); c == nil || c.Note != midi.NoteD1 || c.Dynamics != 30 {
		t.Fatalf("common = %v", c)
	}
	if cat.Regions(midi.NoteInvalid) != nil {
		t.Fatalf("invalid note should have no regions")
	}
}

func TestCatalogOpensOneHandlePerSlot(t *testing.T) {
	table := TableHeader + "\n" +
		"d1 a bank.qwb sn 10 4 1 16 44100 1 2\n" +
		"e1 b bank.qwb sn 10 4 1 16 44100 1 2\n" +
		"a1 c other.qwb sn 10 4 1 16 44100 1 2\n"
	opened := map[string]int{}
	closed := 0
	open := func(path string) (Handle, error) {
		opened[filepath.Base(path)]++
		return countingHandle{strings.NewReader("QWSF"), &closed}, nil
	}
	cat, err := ParseCatalog(strings.NewReader(table), "/samples", withOpener(open), WithPolyphony(4))
	if err != nil {
		t.Fatal(err)
	}
	if opened["bank.qwb"] != 4 || opened["other.qwb"] != 4 {
		t.Fatalf("opened = %v", opened)
	}
	h0, _ := cat.Handle(0, cat.All()[0])
	h1, _ := cat.Handle(1, cat.All()[0])
	if h0 == h1 {
		t.Fatalf("slots must not share a handle")
	}
	h0b, _ := cat.Handle(0, cat.All()[1])
	if h0 != h0b {
		t.Fatalf("regions of one raw file should share the slot's handle")
	}
	if err := cat.Close(); err != nil {
		t.Fatal(err)
	}
	if closed != 8 {
		t.Fatalf("closed %d handles, want 8", closed)
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	good := "d1 a bank.qwb sn 64 4 1 16 44100 1 2"
	tests := []struct {
		name  string
		table string
		kind  qerr.Kind
	}{
		{"empty", "", qerr.InvalidFormat},
		{"header", "QIN SAMPLE TABLE 2\n" + good + "\n", qerr.InvalidFormat},
		{"fields", TableHeader + "\nd1 a bank.qwb sn 64 4 1 16 44100 1\n", qerr.InvalidFormat},
		{"number", TableHeader + "\nd1 a bank.qwb sn loud 4 1 16 44100 1 2\n", qerr.InvalidNumber},
		{"note", TableHeader + "\nc1 a bank.qwb sn 64 4 1 16 44100 1 2\n", qerr.InvalidData},
		{"bank", TableHeader + "\nd1 a bank.qwb xx 64 4 1 16 44100 1 2\n", qerr.InvalidData},
		{"dynamics", TableHeader + "\nd1 a bank.qwb sn 129 4 1 16 44100 1 2\n", qerr.InvalidData},
		{"size", TableHeader + "\nd1 a bank.qwb sn 64 0 1 16 44100 1 2\n", qerr.InvalidData},
		{"channels", TableHeader + "\nd1 a bank.qwb sn 64 4 0 16 44100 1 2\n", qerr.InvalidData},
		{"bps", TableHeader + "\nd1 a bank.qwb sn 64 4 1 12 44100 1 2\n", qerr.InvalidData},
		{"rate", TableHeader + "\nd1 a bank.qwb sn 64 4 1 16 22050 1 2\n", qerr.InvalidData},
		{"align", TableHeader + "\nd1 a bank.qwb sn 64 4 1 16 44100 1 0\n", qerr.InvalidData},
		{"long line", TableHeader + "\n" + good + " " + strings.Repeat("x", 3000) + "\n", qerr.BufferOverflow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			closed := 0
			open := func(string) (Handle, error) {
				return countingHandle{strings.NewReader("QWSF"), &closed}, nil
			}
			cat, err := ParseCatalog(strings.NewReader(tc.table), ".", withOpener(open))
			if cat != nil {
				t.Fatalf("expected no catalog")
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("got %v, want %v", err, tc.kind)
			}
		})
	}
}

func TestLoadCatalogClosesHandlesOnFailure(t *testing.T) {
	table := TableHeader + "\n" +
		"d1 a bank.qwb sn 10 4 1 16 44100 1 2\n" +
		"e1 b bank.qwb sn 200 4 1 16 44100 1 2\n"
	opened, closed := 0, 0
	open := func(string) (Handle, error) {
		opened++
		return countingHandle{strings.NewReader(""), &closed}, nil
	}
	if _, err := ParseCatalog(strings.NewReader(table), ".", withOpener(open)); !errors.Is(err, qerr.InvalidData) {
		t.Fatalf("expected InvalidData, got %v", err)
	}
	if opened == 0 || opened != closed {
		t.Fatalf("opened %d closed %d", opened, closed)
	}
}

func TestLoadCatalogMissingRawFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.txt")
	table := TableHeader + "\nd1 a missing.qwb sn 10 4 1 16 44100 1 2\n"
	if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); !errors.Is(err, qerr.FileOpenFailure) {
		t.Fatalf("expected FileOpenFailure, got %v", err)
	}
}

func TestLoadCatalogBankCheck(t *testing.T) {
	path := writeBank(t, []testRegion{{note: "d1", dynamics: 64, data: ramp16(4)}})
	cat, err := LoadCatalog(path, WithBankCheck())
	if err != nil {
		t.Fatalf("valid bank rejected: %v", err)
	}
	cat.Close()

	bank := filepath.Join(filepath.Dir(path), "bank.qwb")
	if err := os.WriteFile(bank, []byte("RIFF0000"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path, WithBankCheck()); !errors.Is(err, qerr.InvalidFormat) {
		t.Fatalf("expected InvalidFormat, got %v", err)
	}
}

func TestLoadCatalogSampleDirAndBlankLines(t *testing.T) {
	path := writeBank(t, []testRegion{{note: "b4", dynamics: 64, data: ramp16(4)}})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(t.TempDir(), "table.txt")
	withBlank := strings.Replace(string(data), "\n", "\n\n", 1)
	if err := os.WriteFile(other, []byte(withBlank), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(other); !errors.Is(err, qerr.FileOpenFailure) {
		t.Fatalf("expected raw file lookup next to the descriptor, got %v", err)
	}
	cat, err := LoadCatalog(other, WithSampleDir(filepath.Dir(path)))
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	if cat.Common().Note != midi.NoteB4 {
		t.Fatalf("common note = %v", cat.Common().Note)
	}
}
