package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go-metronome/audio"
	"go-metronome/debug"
	"go-metronome/midi"
	"go-metronome/sequencer"
)

func main() {
	output := flag.String("output", "audio", "click output: audio or midi")
	samples := flag.String("samples", "samples", "directory of <voice>.wav files")
	port := flag.String("midi-port", "", "MIDI output port (substring match)")
	kit := flag.String("kit", midi.DefaultKit, "MIDI drum kit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	debug.Console(os.Stderr, level)
	defer midi.CloseDriver()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		return
	}

	var err error
	switch args[0] {
	case "ports":
		err = listPorts()
	case "voices":
		dir := *samples
		if len(args) > 1 {
			dir = args[1]
		}
		err = listVoices(dir)
	case "click":
		err = click(args[1:], *output, *samples, midi.Config{Port: *port, Kit: *kit, Channel: 10})
	case "pedal":
		match := "pedal"
		if len(args) > 1 {
			match = args[1]
		}
		watchPedal(match)
	default:
		usage()
	}
	if err != nil {
		log.Fatal().Err(err).Msg(args[0])
	}
}

func usage() {
	fmt.Println("Metronome output checks")
	fmt.Println("")
	fmt.Println("Usage: clicktest [flags] <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports                      - List all MIDI ports")
	fmt.Println("  voices [dir]               - Show which voices load from a samples directory")
	fmt.Println("  click <voice> [count] [bpm] - Play a voice through the scheduler")
	fmt.Println("  pedal [match]              - Print foot pedal presses")
	fmt.Println("")
	flag.PrintDefaults()
}

func listPorts() error {
	fmt.Println("=== MIDI Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ports, err := midi.ListPorts(midi.PortTimeout)
	if errors.Is(err, midi.ErrTimeout) {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("\nInputs:")
	for i, name := range ports.InNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\nOutputs:")
	for i, name := range ports.OutNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func listVoices(dir string) error {
	bank := audio.NewBank(audio.DefaultConfig().SampleRate)
	n := bank.LoadSamples(dir, audio.SampleVoices)
	fmt.Printf("=== Voices (%s: %d/%d samples) ===\n", dir, n, len(audio.SampleVoices))

	for _, st := range bank.Status() {
		switch {
		case st.Synth:
			fmt.Printf("  ok    %-22s synthesized\n", st.Voice)
		case st.Err != nil:
			fmt.Printf("  MISS  %-22s %v\n", st.Voice, st.Err)
		default:
			fmt.Printf("  ok    %-22s %s\n", st.Voice, audio.SampleFilename(st.Voice))
		}
	}
	return nil
}

func click(args []string, output, samples string, mcfg midi.Config) error {
	if len(args) < 1 {
		return fmt.Errorf("click needs a voice")
	}
	voice := sequencer.Voice(args[0])
	count := 8
	bpm := 120.0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("bad count %q", args[1])
		}
		count = n
	}
	if len(args) > 2 {
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("bad bpm %q", args[2])
		}
		bpm = v
	}

	var acquire sequencer.Acquirer
	switch output {
	case "audio":
		cfg := audio.DefaultConfig()
		cfg.SamplesDir = samples
		acquire = audio.Acquire(cfg)
	case "midi":
		acquire = midi.Acquire(mcfg)
	default:
		return fmt.Errorf("unknown output %q", output)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pattern := sequencer.Pattern{
		Events:     []sequencer.Event{{Voice: voice, Position: 0, Loudness: 1}},
		LoopLength: 1,
	}
	sched, err := sequencer.Create(ctx, 1, pattern, acquire, sequencer.WithTempo(bpm))
	if err != nil {
		return err
	}
	defer sched.Destroy()

	fmt.Printf("Playing %s x%d at %.0f bpm on %s\n", voice, count, bpm, output)
	if err := sched.Start(); err != nil {
		return err
	}

	// Let the last click ring out
	length := time.Duration(float64(count) * 60 / bpm * float64(time.Second))
	select {
	case <-time.After(length + 300*time.Millisecond):
	case err := <-sched.Errors():
		return err
	case <-ctx.Done():
	}
	sched.Stop()
	return nil
}

func watchPedal(match string) {
	fmt.Printf("Watching input ports matching %q. Ctrl+C to exit.\n", match)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dm := midi.NewDeviceManager(match)
	go dm.Run(ctx)

	for evt := range dm.Events() {
		switch evt.Type {
		case midi.DeviceConnected:
			fmt.Printf("[%s] connected: %s\n", time.Now().Format("15:04:05"), evt.ID)
			go func(c midi.Controller) {
				for p := range c.Events() {
					fmt.Printf("[%s] press: %s note=%d vel=%d\n", time.Now().Format("15:04:05"), p.Source, p.Note, p.Velocity)
				}
			}(evt.Controller)
		case midi.DeviceDisconnected:
			fmt.Printf("[%s] disconnected: %s\n", time.Now().Format("15:04:05"), evt.ID)
		}
	}
}
