package swing

import (
	"fmt"

	"go-metronome/sequencer"
)

// Ratio is backswing:downswing, 2 for 2:1 and 3 for 3:1
type Ratio int

const (
	Ratio2To1 Ratio = 2
	Ratio3To1 Ratio = 3
)

func (r Ratio) String() string {
	return fmt.Sprintf("%d:1", int(r))
}

// Valid reports whether r is a supported ratio
func (r Ratio) Valid() bool {
	return r == Ratio2To1 || r == Ratio3To1
}

// Voices used by the swing patterns
const (
	VoiceTakeaway sequencer.Voice = "perc_metronomequartz"
	VoiceTop      sequencer.Voice = "synth1"
	VoiceImpact   sequencer.Voice = "perc_stick"
	VoicePulse    sequencer.Voice = "hi-hat1"
)

// Layout is a generated swing pattern plus how many internal beats make one
// perceived beat
type Layout struct {
	Pattern        sequencer.Pattern
	PerceivedBeats int
}

// Build returns the pattern for a ratio.
//
// Each internal beat is one downswing-length. The takeaway sits on beat 0,
// the top of the backswing on beat r and impact on beat r+1. A hi-hat pulse
// fills every beat, accented every PerceivedBeats. Emphasizing impact
// makes the impact click louder than the top and shortens the loop.
func Build(r Ratio, emphasizeImpact bool) Layout {
	if !r.Valid() {
		r = Ratio3To1
	}
	top := float64(r)

	topVol, impactVol := 2.0, 1.0
	if emphasizeImpact {
		topVol, impactVol = 1.0, 2.0
	}

	var loop, accent int
	switch {
	case r == Ratio2To1 && emphasizeImpact:
		loop, accent = 6, 3
	case r == Ratio2To1:
		loop, accent = 8, 2
	case emphasizeImpact:
		loop, accent = 8, 4
	default:
		loop, accent = 12, 3
	}

	events := []sequencer.Event{
		{Voice: VoiceTakeaway, Position: 0, Loudness: 1.2},
		{Voice: VoiceTop, Position: top, Loudness: topVol},
		{Voice: VoiceImpact, Position: top + 1, Loudness: impactVol},
	}
	for b := 0; b < loop; b++ {
		emphasize := 0.5
		if b%accent == 0 {
			emphasize = 4
		}
		events = append(events, sequencer.Event{
			Voice:    VoicePulse,
			Position: float64(b),
			Loudness: 0.08 * emphasize,
		})
	}

	return Layout{
		Pattern:        normalize(sequencer.Pattern{Events: events, LoopLength: float64(loop)}),
		PerceivedBeats: accent,
	}
}

// normalize scales loudness so the loudest event is 1, keeping the balance
func normalize(p sequencer.Pattern) sequencer.Pattern {
	peak := 0.0
	for _, e := range p.Events {
		peak = max(peak, e.Loudness)
	}
	if peak <= 1 {
		return p
	}
	for i := range p.Events {
		p.Events[i].Loudness /= peak
	}
	return p
}
