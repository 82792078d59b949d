package audio

import "math"

// Tone is a sine burst with an exponential decay envelope
type Tone struct {
	Freq     float64 // Hz
	Duration float64 // seconds
	Floor    float64 // envelope level reached at Duration, e.g. 0.01
	Gain     float64
}

// Click tones
var (
	// synth1: 1 kHz blip falling to 1% over 30ms
	ToneSynth1 = Tone{Freq: 1000, Duration: 0.03, Floor: 0.01, Gain: 1}
)

// Render synthesizes the tone at the given sample rate
func (t Tone) Render(sampleRate int) [][2]float32 {
	n := int(math.Round(t.Duration * float64(sampleRate)))
	out := make([][2]float32, n)
	floor := t.Floor
	if floor <= 0 {
		floor = 0.01
	}
	for i := range out {
		sec := float64(i) / float64(sampleRate)
		env := math.Pow(floor, sec/t.Duration)
		v := float32(math.Sin(2*math.Pi*t.Freq*sec) * env * t.Gain)
		out[i] = [2]float32{v, v}
	}
	return out
}

// GenerateClick builds the synth2 buffer: a 1200 Hz sine under e^(-100t),
// at half amplitude, 50ms long
func GenerateClick(sampleRate int) [][2]float32 {
	const (
		freq     = 1200.0
		decay    = 100.0
		amp      = 0.5
		duration = 0.05
	)
	n := int(math.Round(duration * float64(sampleRate)))
	out := make([][2]float32, n)
	for i := range out {
		sec := float64(i) / float64(sampleRate)
		v := float32(math.Sin(2*math.Pi*freq*sec) * math.Exp(-decay*sec) * amp)
		out[i] = [2]float32{v, v}
	}
	return out
}
