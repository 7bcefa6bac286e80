package audio

import (
	"encoding/binary"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

// wavFormatPCM is the RIFF format tag for integer PCM.
const wavFormatPCM = 1

// WAVSink records the stream to a WAV file. It always has room, so the
// render loop runs as fast as it can.
type WAVSink struct {
	path    string
	cfg     Config
	f       *os.File
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	written int
	paused  bool
}

// NewWAVSink writes to path, creating or truncating it in Init.
func NewWAVSink(path string) *WAVSink { return &WAVSink{path: path} }

func (s *WAVSink) Name() string { return "wav" }

// Init accepts any little-endian width; big-endian is replaced with the
// little-endian format of the same width, as WAV requires.
func (s *WAVSink) Init(rate, channels int, f Format, latency time.Duration) error {
	const op = "wav init"
	if err := checkInit(op, rate, channels, f); err != nil {
		return err
	}
	use := f
	use.BigEndian = false

	file, err := os.Create(s.path)
	if err != nil {
		return qerr.Wrap(qerr.FileOpenFailure, op, err)
	}
	s.f = file
	s.cfg = Config{SampleRate: rate, Channels: channels, Format: use, Latency: latency}
	s.enc = wav.NewEncoder(file, rate, use.Bits, channels, wavFormatPCM)
	s.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: use.Bits,
	}
	if use != f {
		return replaced(op, f, use)
	}
	return nil
}

// FreeSpace reports one second of stream.
func (s *WAVSink) FreeSpace() int {
	if s.paused {
		return 0
	}
	return s.cfg.BytesPerSecond()
}

func (s *WAVSink) Write(p []byte) (int, error) {
	if s.enc == nil {
		return 0, qerr.New(qerr.InvalidParameter, "wav write", "sink not initialized")
	}
	width := s.cfg.Format.Bytes()
	n := len(p) / width
	if cap(s.buf.Data) < n {
		s.buf.Data = make([]int, n)
	}
	s.buf.Data = s.buf.Data[:n]
	for i := 0; i < n; i++ {
		b := p[i*width:]
		switch width {
		case 1:
			// WAV stores 8-bit samples unsigned.
			s.buf.Data[i] = int(b[0] ^ 0x80)
		case 2:
			s.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(b)))
		case 3:
			s.buf.Data[i] = int(int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8)
		case 4:
			s.buf.Data[i] = int(int32(binary.LittleEndian.Uint32(b)))
		}
	}
	if err := s.enc.Write(s.buf); err != nil {
		return 0, err
	}
	s.written += n * width
	return n * width, nil
}

// Written is the number of PCM bytes recorded.
func (s *WAVSink) Written() int { return s.written }

func (s *WAVSink) Delay() time.Duration { return 0 }
func (s *WAVSink) Pause() { s.paused = true }
func (s *WAVSink) Resume() { s.paused = false }
func (s *WAVSink) Reset() {}

// Close finalizes the RIFF header and closes the file.
func (s *WAVSink) Close() error {
	if s.enc == nil {
		return nil
	}
	err := s.enc.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.enc, s.f = nil, nil
	return err
}

func (s *WAVSink) Config() Config { return s.cfg }
