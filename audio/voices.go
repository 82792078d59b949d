package audio

import (
	"go-metronome/sequencer"
)

// Synthesized voices
const (
	VoiceSynth1 sequencer.Voice = "synth1"
	VoiceSynth2 sequencer.Voice = "synth2"
)

// SampleVoices are the voices backed by a WAV file in the samples directory
var SampleVoices = []sequencer.Voice{
	"hi-hat1",
	"hi-hat2",
	"hi-hat3",
	"hi-hat4",
	"hi-hat5",
	"hi-hat6",
	"perc_clicktoy",
	"perc_glass",
	"perc_metronomequartz",
	"perc_stick",
	"synth_block_e",
	"synth_square_d",
	"synth_square_e",
	"synth_tick_b",
	"synth_tick_c",
	"synth_tick_e",
	"synth_tick_h",
}

// SampleFilename is the file a sample voice is loaded from
func SampleFilename(v sequencer.Voice) string {
	return string(v) + ".wav"
}

// IsSampleVoice reports whether v is loaded from a file
func IsSampleVoice(v sequencer.Voice) bool {
	for _, s := range SampleVoices {
		if s == v {
			return true
		}
	}
	return false
}

// AllVoices lists every voice the registry declares
func AllVoices() []sequencer.Voice {
	out := []sequencer.Voice{VoiceSynth1, VoiceSynth2}
	return append(out, SampleVoices...)
}
