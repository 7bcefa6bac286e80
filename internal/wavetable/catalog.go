package wavetable

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cbegin/qinwave-go/internal/midi"
	"github.com/cbegin/qinwave-go/internal/qerr"
)

const (
	// TableHeader is the first line of every sample descriptor.
	TableHeader = "QIN SAMPLE TABLE 1"
	// BankMagic opens every wave bank file.
	BankMagic = "QWSF"
	// BankHeaderSize is the magic plus eight reserved int32 fields.
	BankHeaderSize = 4 + 8*4
	// MinSampleRate is the lowest rate a region may declare.
	MinSampleRate = 44100
	// SupportedBank is the only bank id the instrument ships.
	SupportedBank = "sn"

	maxDynamics = 128
	maxLineLen  = 2046
	fieldCount  = 11
)

// Region is one playable sample inside a wave bank. Regions are immutable
// after load and shared by every polyphony slot.
type Region struct {
	Note          midi.Note
	Name          string
	RawFile       string
	Bank          string
	Dynamics      int
	Size          int
	Offset        int64
	Channels      int
	BitsPerSample int
	SampleRate    int
	Tag           int
	Align         int
}

// BytesPerSample is the packed width of one channel sample.
func (r *Region) BytesPerSample() int { return r.BitsPerSample / 8 }

func (r *Region) String() string {
	return fmt.Sprintf("%s(%s) dynamics=%d size=%d offset=%d %dch %dbit %dHz",
		r.Name, r.Note, r.Dynamics, r.Size, r.Offset, r.Channels, r.BitsPerSample, r.SampleRate)
}

// Handle is an open sample file. Each polyphony slot owns its own handle per
// raw file so slots seek independently.
type Handle interface {
	io.ReadSeeker
	io.Closer
}

// Catalog indexes regions by note and owns the per-slot file handles.
type Catalog struct {
	polyphony int
	regions   [midi.MaxNote][]*Region
	order     []*Region
	handles   []map[string]Handle
}

type catalogConfig struct {
	sampleDir  string
	polyphony  int
	verifyBank bool
	open       func(path string) (Handle, error)
}

// CatalogOption configures LoadCatalog.
type CatalogOption func(*catalogConfig)

// WithSampleDir resolves raw files against dir instead of the descriptor's
// directory.
func WithSampleDir(dir string) CatalogOption {
	return func(c *catalogConfig) { c.sampleDir = dir }
}

// WithPolyphony sets the number of slots that receive their own handles.
func WithPolyphony(n int) CatalogOption {
	return func(c *catalogConfig) {
		if n > 0 && n <= midi.MaxPolyphony {
			c.polyphony = n
		}
	}
}

// WithBankCheck rejects raw files that do not start with the bank magic.
func WithBankCheck() CatalogOption {
	return func(c *catalogConfig) { c.verifyBank = true }
}

func withOpener(open func(string) (Handle, error)) CatalogOption {
	return func(c *catalogConfig) { c.open = open }
}

func openFile(path string) (Handle, error) { return os.Open(path) }

// LoadCatalog parses a sample descriptor. Any error closes the handles opened
// so far and no catalog is returned.
func LoadCatalog(path string, opts ...CatalogOption) (*Catalog, error) {
	cfg := catalogConfig{
		sampleDir: filepath.Dir(path),
		polyphony: midi.MaxPolyphony,
		open:      openFile,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, qerr.Wrap(qerr.FileOpenFailure, "load catalog", err)
	}
	defer f.Close()
	return parseCatalog(f, cfg)
}

// ParseCatalog reads a descriptor from r, resolving raw files against
// sampleDir.
func ParseCatalog(r io.Reader, sampleDir string, opts ...CatalogOption) (*Catalog, error) {
	cfg := catalogConfig{
		sampleDir: sampleDir,
		polyphony: midi.MaxPolyphony,
		open:      openFile,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return parseCatalog(r, cfg)
}

func parseCatalog(r io.Reader, cfg catalogConfig) (*Catalog, error) {
	const op = "load catalog"
	c := &Catalog{
		polyphony: cfg.polyphony,
		handles:   make([]map[string]Handle, cfg.polyphony),
	}
	for i := range c.handles {
		c.handles[i] = make(map[string]Handle)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, maxLineLen+2), maxLineLen+2)

	fail := func(err error) (*Catalog, error) {
		c.Close()
		return nil, err
	}

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fail(scanError(op, err))
		}
		return fail(qerr.New(qerr.InvalidFormat, op, "missing table header"))
	}
	if strings.TrimSuffix(sc.Text(), "\r") != TableHeader {
		return fail(qerr.Errorf(qerr.InvalidFormat, op, "bad table header %q", sc.Text()))
	}

	offset := int64(BankHeaderSize)
	for lineNo := 2; sc.Scan(); lineNo++ {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		reg, err := parseRegion(line, lineNo)
		if err != nil {
			return fail(err)
		}
		reg.Offset = offset
		offset += int64(reg.Size)

		if err := c.openHandles(reg.RawFile, cfg); err != nil {
			return fail(err)
		}
		c.regions[reg.Note] = append(c.regions[reg.Note], reg)
		c.order = append(c.order, reg)
	}
	if err := sc.Err(); err != nil {
		return fail(scanError(op, err))
	}
	return c, nil
}

func scanError(op string, err error) error {
	if errors.Is(err, bufio.ErrTooLong) {
		return qerr.Errorf(qerr.BufferOverflow, op, "line longer than %d bytes", maxLineLen)
	}
	return qerr.Wrap(qerr.FileReadFailure, op, err)
}

func parseRegion(line string, lineNo int) (*Region, error) {
	const op = "load catalog"
	f := strings.Fields(line)
	if len(f) != fieldCount {
		return nil, qerr.Errorf(qerr.InvalidFormat, op, "line %d: %d fields, want %d", lineNo, len(f), fieldCount)
	}

	var nums [7]int
	for i, s := range f[4:] {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, qerr.Errorf(qerr.InvalidNumber, op, "line %d: field %d: %q is not an integer", lineNo, i+5, s)
		}
		nums[i] = v
	}
	reg := &Region{
		Note:          midi.ParseNote(f[0]),
		Name:          f[1],
		RawFile:       f[2],
		Bank:          f[3],
		Dynamics:      nums[0],
		Size:          nums[1],
		Channels:      nums[2],
		BitsPerSample: nums[3],
		SampleRate:    nums[4],
		Tag:           nums[5],
		Align:         nums[6],
	}

	bad := func(format string, args ...any) (*Region, error) {
		return nil, qerr.Errorf(qerr.InvalidData, op, "line %d: "+format, append([]any{lineNo}, args...)...)
	}
	switch {
	case !reg.Note.Valid():
		return bad("unknown note %q", f[0])
	case reg.Bank != SupportedBank:
		return bad("unsupported bank %q", reg.Bank)
	case reg.Dynamics < 0 || reg.Dynamics > maxDynamics:
		return bad("dynamics %d out of range", reg.Dynamics)
	case reg.Size <= 0:
		return bad("size %d", reg.Size)
	case reg.Channels <= 0:
		return bad("channels %d", reg.Channels)
	case reg.BitsPerSample%8 != 0 || reg.BitsPerSample < 8 || reg.BitsPerSample > 32:
		return bad("bits per sample %d", reg.BitsPerSample)
	case reg.SampleRate < MinSampleRate:
		return bad("sample rate %d below %d", reg.SampleRate, MinSampleRate)
	case reg.Align <= 0:
		return bad("align %d", reg.Align)
	}
	return reg, nil
}

func (c *Catalog) openHandles(raw string, cfg catalogConfig) error {
	if _, ok := c.handles[0][raw]; ok {
		return nil
	}
	path := filepath.Join(cfg.sampleDir, raw)
	for slot := range c.handles {
		h, err := cfg.open(path)
		if err != nil {
			return qerr.Wrap(qerr.FileOpenFailure, "load catalog", err)
		}
		c.handles[slot][raw] = h
		if slot == 0 && cfg.verifyBank {
			if err := verifyBank(h, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyBank(h Handle, path string) error {
	magic := make([]byte, len(BankMagic))
	if _, err := io.ReadFull(h, magic); err != nil {
		return qerr.Errorf(qerr.InvalidFormat, "load catalog", "%s: short bank header", path)
	}
	if !bytes.Equal(magic, []byte(BankMagic)) {
		return qerr.Errorf(qerr.InvalidFormat, "load catalog", "%s: bad bank magic %q", path, magic)
	}
	_, err := h.Seek(0, io.SeekStart)
	return err
}

// Polyphony is the number of slots holding handles.
func (c *Catalog) Polyphony() int { return c.polyphony }

// Regions returns the regions recorded for note in descriptor order.
func (c *Catalog) Regions(note midi.Note) []*Region {
	if !note.Valid() {
		return nil
	}
	return c.regions[note]
}

// All returns every region in descriptor order.
func (c *Catalog) All() []*Region { return c.order }

// Len is the number of regions.
func (c *Catalog) Len() int { return len(c.order) }

// Common returns the region that fixes the stream format: the first region
// of the lowest note present, or nil for an empty catalog.
func (c *Catalog) Common() *Region {
	for n := midi.NoteD1; n < midi.MaxNote; n++ {
		if len(c.regions[n]) > 0 {
			return c.regions[n][0]
		}
	}
	return nil
}

// Handle returns slot's handle for the region's raw file.
func (c *Catalog) Handle(slot int, r *Region) (Handle, error) {
	if slot < 0 || slot >= c.polyphony {
		return nil, qerr.Errorf(qerr.OutOfRange, "catalog handle", "slot %d", slot)
	}
	h, ok := c.handles[slot][r.RawFile]
	if !ok {
		return nil, qerr.Errorf(qerr.InvalidParameter, "catalog handle", "no handle for %s", r.RawFile)
	}
	return h, nil
}

// Close releases every handle. It is safe to call more than once.
func (c *Catalog) Close() error {
	var errs []error
	for _, m := range c.handles {
		for raw, h := range m {
			if err := h.Close(); err != nil {
				errs = append(errs, err)
			}
			delete(m, raw)
		}
	}
	return errors.Join(errs...)
}
