package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog/log"

	"go-metronome/sequencer"
)

// resampleQuality is passed to beep.Resample (1 = linear, 64 = best)
const resampleQuality = 4

type voiceEntry struct {
	tone   *Tone        // rendered on every dispatch
	frames [][2]float32 // prebuilt buffer
	err    error        // load failure, voice unavailable
}

// Bank holds every voice the sink can play, at the device sample rate.
type Bank struct {
	sampleRate int

	mu     sync.RWMutex
	voices map[sequencer.Voice]*voiceEntry
}

// NewBank returns a bank with the synthesized voices registered
func NewBank(sampleRate int) *Bank {
	b := &Bank{
		sampleRate: sampleRate,
		voices:     make(map[sequencer.Voice]*voiceEntry),
	}
	tone := ToneSynth1
	b.voices[VoiceSynth1] = &voiceEntry{tone: &tone}
	b.voices[VoiceSynth2] = &voiceEntry{frames: GenerateClick(sampleRate)}
	return b
}

// SampleRate returns the rate buffers are stored at
func (b *Bank) SampleRate() int {
	return b.sampleRate
}

// Add registers a prebuilt buffer under v, replacing any previous entry
func (b *Bank) Add(v sequencer.Voice, frames [][2]float32) {
	b.mu.Lock()
	b.voices[v] = &voiceEntry{frames: frames}
	b.mu.Unlock()
}

func (b *Bank) markUnavailable(v sequencer.Voice, err error) {
	b.mu.Lock()
	b.voices[v] = &voiceEntry{err: err}
	b.mu.Unlock()
}

// LoadSamples decodes <dir>/<voice>.wav for each voice. A voice that fails
// to load is logged and marked unavailable; the returned count is the
// number of voices loaded.
func (b *Bank) LoadSamples(dir string, voices []sequencer.Voice) int {
	loaded := 0
	for _, v := range voices {
		path := filepath.Join(dir, SampleFilename(v))
		frames, err := loadFile(path, b.sampleRate)
		if err != nil {
			b.markUnavailable(v, err)
			log.Warn().Err(err).Str("voice", string(v)).Str("path", path).Msg("sample unavailable")
			continue
		}
		b.Add(v, frames)
		loaded++
		log.Debug().Str("voice", string(v)).Int("frames", len(frames)).Msg("sample loaded")
	}
	return loaded
}

// Frames returns the buffer for v, synthesizing it if v is a tone voice
func (b *Bank) Frames(v sequencer.Voice) ([][2]float32, error) {
	b.mu.RLock()
	e, ok := b.voices[v]
	b.mu.RUnlock()

	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", sequencer.ErrUnknownVoice, v)
	case e.err != nil:
		return nil, fmt.Errorf("%w: %s: %v", sequencer.ErrAssetUnavailable, v, e.err)
	case e.tone != nil:
		return e.tone.Render(b.sampleRate), nil
	}
	return e.frames, nil
}

// Status lists every registered voice with its load error (nil if playable)
func (b *Bank) Status() []VoiceStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]VoiceStatus, 0, len(b.voices))
	for v, e := range b.voices {
		out = append(out, VoiceStatus{Voice: v, Synth: !IsSampleVoice(v), Err: e.err})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Voice < out[j].Voice })
	return out
}

// VoiceStatus reports whether a voice can be played
type VoiceStatus struct {
	Voice sequencer.Voice
	Synth bool
	Err   error
}

func loadFile(path string, sampleRate int) ([][2]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadWAV(f, sampleRate)
}

// LoadWAV decodes a WAV stream and resamples it to sampleRate
func LoadWAV(r io.Reader, sampleRate int) ([][2]float32, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	target := beep.SampleRate(sampleRate)
	if format.SampleRate != target {
		s = beep.Resample(resampleQuality, format.SampleRate, target, streamer)
	}

	var out [][2]float32
	chunk := make([][2]float64, 1024)
	for {
		n, ok := s.Stream(chunk)
		for _, smp := range chunk[:n] {
			out = append(out, [2]float32{float32(smp[0]), float32(smp[1])})
		}
		if !ok || n == 0 {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decode wav: no samples")
	}
	return out, nil
}
