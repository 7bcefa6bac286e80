// Command qincompile appends recorded WAV samples to a wave bank and its
// sample table.
//
//	qincompile in.wav qin.qwb qin.syntab sn 64 d1
//	qincompile -ct qin.syntab
//	qincompile -cw qin.qwb
package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/cbegin/qinwave-go/internal/midi"
	"github.com/cbegin/qinwave-go/internal/qerr"
	"github.com/cbegin/qinwave-go/internal/wavetable"
)

const wavFormatPCM = 1

var errFactChunk = errors.New("zero-length data chunk with a fact chunk is not supported")

func main() {
	var (
		createTable = flag.String("ct", "", "create an empty sample table and exit")
		createBank  = flag.String("cw", "", "create an empty wave bank and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] input.wav bank table bank-id dynamics note\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(0)

	switch {
	case *createTable != "":
		if err := CreateTable(*createTable); err != nil {
			log.Fatal(err)
		}
		return
	case *createBank != "":
		if err := CreateBank(*createBank); err != nil {
			log.Fatal(err)
		}
		return
	}

	args := flag.Args()
	if len(args) != 6 {
		flag.Usage()
		os.Exit(1)
	}
	dynamics, err := strconv.Atoi(args[4])
	if err != nil {
		log.Fatalf("dynamics %q: %v", args[4], err)
	}
	line, err := Compile(args[0], args[1], args[2], args[3], dynamics, args[5])
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(line)
}

// CreateTable writes a table holding only the header line.
func CreateTable(path string) error {
	return os.WriteFile(path, []byte(wavetable.TableHeader+"\n"), 0o644)
}

// CreateBank writes a bank holding only the magic and reserved fields.
func CreateBank(path string) error {
	hdr := make([]byte, wavetable.BankHeaderSize)
	copy(hdr, wavetable.BankMagic)
	return os.WriteFile(path, hdr, 0o644)
}

// Compile appends the PCM data of input to bank and the matching descriptor
// line to table, returning the line. 8-bit WAV data is stored signed.
func Compile(input, bank, table, bankID string, dynamics int, note string) (string, error) {
	const op = "compile"
	n := midi.ParseNote(note)
	if n == midi.NoteInvalid {
		return "", qerr.Errorf(qerr.InvalidData, op, "unknown note %q", note)
	}
	if dynamics < 0 || dynamics > 128 {
		return "", qerr.Errorf(qerr.InvalidData, op, "dynamics %d", dynamics)
	}
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if strings.ContainsAny(name, " \t") {
		return "", qerr.Errorf(qerr.InvalidData, op, "sample name %q contains spaces", name)
	}

	in, err := os.Open(input)
	if err != nil {
		return "", qerr.Wrap(qerr.FileOpenFailure, op, err)
	}
	defer in.Close()
	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		return "", qerr.Errorf(qerr.InvalidFormat, op, "%s is not a WAV file", input)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return "", qerr.Errorf(qerr.InvalidFormat, op, "%s is not PCM (format %d)", input, dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return "", qerr.Wrap(qerr.FileReadFailure, op, err)
	}
	size := dec.PCMLen()
	if size == 0 {
		return "", fmt.Errorf("%s: %w", input, errFactChunk)
	}

	pcm := make([]byte, size)
	got, err := io.ReadFull(dec.PCMChunk.R, pcm)
	if errors.Is(err, io.ErrUnexpectedEOF) && got == len(pcm)-1 && len(pcm)%2 == 0 {
		// Some writers declare the padded length of an odd data chunk.
		pcm, err = pcm[:got], nil
	}
	if err != nil {
		return "", qerr.Wrap(qerr.FileReadFailure, op, err)
	}
	size = int64(len(pcm))
	if dec.BitDepth == 8 {
		for i := range pcm {
			pcm[i] ^= 0x80
		}
	}
	if err := verifyBankFile(bank); err != nil {
		return "", err
	}

	channels, bits := int(dec.NumChans), int(dec.BitDepth)
	line := fmt.Sprintf("%s %s %s %s %d %d %d %d %d %d %d \n",
		n, name, filepath.Base(bank), bankID, dynamics, size,
		channels, bits, dec.SampleRate, wavFormatPCM, channels*bits/8)

	if err := appendFile(bank, pcm); err != nil {
		return "", err
	}
	if err := appendFile(table, []byte(line)); err != nil {
		return "", err
	}
	return line, nil
}

// verifyBankFile refuses to append to something that is not a wave bank.
func verifyBankFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return qerr.Wrap(qerr.FileOpenFailure, "compile", err)
	}
	defer f.Close()
	var hdr [4]byte
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil || !bytes.Equal(hdr[:], []byte(wavetable.BankMagic)) {
		return qerr.Errorf(qerr.InvalidFormat, "compile", "%s is not a wave bank, create it with -cw", path)
	}
	return nil
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return qerr.Wrap(qerr.FileOpenFailure, "compile", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
