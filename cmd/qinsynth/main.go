package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/qinwave-go"
	"github.com/cbegin/qinwave-go/internal/audio"
	"github.com/cbegin/qinwave-go/internal/midi"
	"github.com/cbegin/qinwave-go/internal/wavetable"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource so deferred cleanup, including restoring the
// terminal after -keyboard, happens before main exits.
func run() error {
	var (
		tablePath  = flag.String("table", "samples/qin2.syntab", "sample descriptor table")
		sampleDir  = flag.String("samples", "", "directory holding the wave banks (default: the table's directory)")
		configPath = flag.String("config", "", "YAML instrument config")
		sinkName   = flag.String("sink", "ebiten", "audio output: ebiten|oto|null|wav")
		outPath    = flag.String("out", "qin.wav", "output file for -sink wav")
		format     = flag.String("format", "", "preferred output format, e.g. s32le or s16le")
		latency    = flag.Duration("latency", 0, "output latency (default from config or 100ms)")
		midiIn     = flag.String("midi-in", "", "MIDI input port name fragment")
		keyboard   = flag.Bool("keyboard", false, "play notes from the computer keyboard")
		list       = flag.Bool("list", false, "list MIDI inputs and exit")
		verbose    = flag.Bool("v", false, "log voice allocation and sink negotiation")
	)
	flag.Parse()
	defer midi.CloseDriver()

	if *list {
		for _, name := range midi.InPorts() {
			fmt.Println(name)
		}
		return nil
	}

	cfg := qinwave.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = qinwave.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	opts := cfg.Options()
	if *format != "" {
		f, err := audio.ParseFormat(*format)
		if err != nil {
			return err
		}
		opts = append(opts, qinwave.WithOutputFormat(f))
	}
	if *latency > 0 {
		opts = append(opts, qinwave.WithLatency(*latency))
	}
	if *verbose {
		opts = append(opts, qinwave.WithLogger(log.Printf))
	}

	var catOpts []wavetable.CatalogOption
	if *sampleDir != "" {
		catOpts = append(catOpts, wavetable.WithSampleDir(*sampleDir))
	}
	cat, err := wavetable.LoadCatalog(*tablePath, append(catOpts, wavetable.WithBankCheck())...)
	if err != nil {
		return err
	}
	log.Printf("loaded %d samples from %s", cat.Len(), *tablePath)

	sink, err := newSink(*sinkName, *outPath)
	if err != nil {
		cat.Close()
		return err
	}
	synth, err := qinwave.New(cat, sink, opts...)
	if err != nil {
		cat.Close()
		return err
	}
	defer func() {
		if err := synth.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()
	out := synth.OutputConfig()
	log.Printf("audio: %s %d Hz x%d %s", sink.Name(), out.SampleRate, out.Channels, out.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *midiIn != "" {
		in, err := midi.FindInPort(*midiIn)
		if err != nil {
			return err
		}
		stopListen, err := midi.Listen(in, synth.Send, log.Printf)
		if err != nil {
			return err
		}
		defer stopListen()
		log.Printf("listening on %s", in.String())
	}
	if *keyboard {
		kb := midi.NewKeyboard(synth.Send, cancel, log.Printf)
		if err := kb.Start(); err != nil {
			return err
		}
		defer kb.Stop()
		log.Printf("keyboard: the bottom two letter rows play d1..d5, digits set velocity, Esc quits")
	}

	g.Go(func() error { return synth.Run(ctx) })
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if *verbose {
					log.Printf("voices %d steals %d dropped %d written %d", synth.ActiveVoices(), synth.Steals(), synth.Queue().Drops(), synth.Written())
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newSink(name, outPath string) (audio.Sink, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ebiten":
		return audio.NewEbitenSink(), nil
	case "oto":
		return audio.NewOtoSink(), nil
	case "null":
		return audio.NewNullSink(), nil
	case "wav":
		return audio.NewWAVSink(outPath), nil
	default:
		return nil, fmt.Errorf("invalid -sink %q (expected ebiten|oto|null|wav)", name)
	}
}
