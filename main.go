package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go-metronome/audio"
	"go-metronome/config"
	"go-metronome/debug"
	"go-metronome/midi"
	"go-metronome/remote"
	"go-metronome/sequencer"
	"go-metronome/swing"
	"go-metronome/theme"
	"go-metronome/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-metronome/config.yaml)")
	output := flag.String("output", "", "click output: audio or midi")
	samples := flag.String("samples", "", "directory of <voice>.wav files")
	midiPort := flag.String("midi-port", "", "MIDI output port (substring match)")
	listen := flag.String("listen", "", "remote control address, e.g. :8090")
	logPath := flag.String("log", "", "debug log file, or - for stderr")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		cfg.Output = config.Output(*output)
	}
	if *samples != "" {
		cfg.Audio.SamplesDir = *samples
	}
	if *midiPort != "" {
		cfg.MIDI.Port = *midiPort
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(*logPath)
	defer debug.Disable()
	defer midi.CloseDriver()

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(*configPath, cfg); err != nil {
		log.Warn().Err(err).Msg("config not saved")
	}
}

func run(cfg *config.Config) error {
	sw := swing.NewState(swing.Ratio(cfg.Swing.Ratio), cfg.Swing.EmphasizeImpact, cfg.Swing.DownswingFrames)

	var acquire sequencer.Acquirer
	switch cfg.Output {
	case config.OutputMIDI:
		acquire = midi.Acquire(midi.Config{
			Port:    cfg.MIDI.Port,
			Kit:     cfg.MIDI.Kit,
			Channel: uint8(cfg.MIDI.Channel),
		})
	default:
		acquire = audio.Acquire(audio.Config{
			SampleRate: cfg.Audio.SampleRate,
			Buffer:     cfg.AudioBuffer(),
			SamplesDir: cfg.Audio.SamplesDir,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := sequencer.Create(ctx, cfg.Volume, sw.Pattern(), acquire,
		sequencer.WithTickInterval(cfg.TickInterval()),
		sequencer.WithScheduleAhead(cfg.ScheduleAhead()),
		sequencer.WithTempo(sw.InternalBPM()),
	)
	if err != nil {
		return err
	}
	defer sched.Destroy()

	// Foot pedal hot-plug (optional)
	var deviceMgr *midi.DeviceManager
	if cfg.MIDI.PedalPort != "" {
		deviceMgr = midi.NewDeviceManager(cfg.MIDI.PedalPort)
		go deviceMgr.Run(ctx)
	}

	m := tui.NewModel(sched, sw, deviceMgr, theme.Default())
	m.Output = string(cfg.Output)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if cfg.Listen != "" {
		srv := remote.NewServer(sched)
		srv.OnCommand = func(c remote.Command) { p.Send(tui.RemoteMsg(c)) }
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
				log.Error().Err(err).Msg("remote control stopped")
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		return err
	}

	// Remember where the user left off
	cfg.Swing.Ratio = int(sw.Ratio())
	cfg.Swing.EmphasizeImpact = sw.EmphasizeImpact()
	cfg.Swing.DownswingFrames = sw.DownswingFrames()
	cfg.Volume = sched.Volume()
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func saveConfig(path string, cfg *config.Config) error {
	if path == "" {
		return cfg.Save()
	}
	return cfg.SaveTo(path)
}

func setupLogging(path string) {
	switch path {
	case "-":
		debug.Console(os.Stderr, zerolog.DebugLevel)
	case "":
		if err := debug.Enable(debug.DefaultPath(), zerolog.InfoLevel); err != nil {
			fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
		}
	default:
		if err := debug.Enable(path, zerolog.DebugLevel); err != nil {
			fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
		}
	}
}
