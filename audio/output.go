package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog/log"

	"go-metronome/sequencer"
)

// Config describes the sound card output
type Config struct {
	SampleRate int
	Buffer     time.Duration // device buffer; smaller is tighter but riskier
	SamplesDir string
}

// DefaultConfig returns 44.1kHz with a 20ms buffer
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Buffer:     20 * time.Millisecond,
	}
}

// oto allows one context per process; it is shared by every Output
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

func openContext(ctx context.Context, cfg Config) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != cfg.SampleRate {
			return nil, fmt.Errorf("audio already open at %d Hz", otoRate)
		}
		return otoCtx, nil
	}

	c, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   cfg.Buffer,
	})
	if err != nil {
		return nil, err
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	otoCtx = c
	otoRate = cfg.SampleRate
	return c, nil
}

// Output plays voices on the sound card. It implements sequencer.Sink.
type Output struct {
	ctx    *oto.Context
	player *oto.Player
	mixer  *Mixer
	bank   *Bank
}

// Open starts the device and loads every sample voice from cfg.SamplesDir
func Open(ctx context.Context, cfg Config) (*Output, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}

	c, err := openContext(ctx, cfg)
	if err != nil {
		return nil, sequencer.NewResourceError("audio", err)
	}

	bank := NewBank(cfg.SampleRate)
	if cfg.SamplesDir != "" {
		n := bank.LoadSamples(cfg.SamplesDir, SampleVoices)
		log.Info().Int("loaded", n).Int("declared", len(SampleVoices)).Str("dir", cfg.SamplesDir).Msg("samples")
	} else {
		log.Warn().Msg("no samples directory, only synthesized voices available")
		for _, v := range SampleVoices {
			bank.markUnavailable(v, fmt.Errorf("no samples directory configured"))
		}
	}

	mixer := NewMixer(cfg.SampleRate)
	player := c.NewPlayer(mixer)
	// ~10ms of read-ahead keeps the mixer clock close to what is heard
	player.SetBufferSize(cfg.SampleRate / 100 * bytesPerFrame)
	player.Play()

	log.Info().Int("rate", cfg.SampleRate).Dur("buffer", cfg.Buffer).Msg("audio output open")
	return &Output{ctx: c, player: player, mixer: mixer, bank: bank}, nil
}

// Acquire returns an Acquirer that opens the sound card with cfg
func Acquire(cfg Config) sequencer.Acquirer {
	return func(ctx context.Context) (sequencer.Sink, error) {
		out, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Bank exposes the loaded voices
func (o *Output) Bank() *Bank {
	return o.bank
}

func (o *Output) Now() float64 {
	return o.mixer.Now()
}

func (o *Output) Schedule(at float64, v sequencer.Voice, loudness float64) error {
	frames, err := o.bank.Frames(v)
	if err != nil {
		return err
	}
	o.mixer.Schedule(at, frames, loudness)
	return nil
}

func (o *Output) SetVolume(level float64) {
	o.mixer.SetGain(level)
}

func (o *Output) Resume() error {
	if err := o.ctx.Err(); err != nil {
		return err
	}
	return o.ctx.Resume()
}

// Close stops the player. The shared device context stays open.
func (o *Output) Close() error {
	o.player.Pause()
	return o.player.Close()
}
