package sequencer

// Voice names a timbre the sink knows how to play ("synth1", "hi-hat1", ...)
type Voice string

// Event is one click in a pattern.
//
// Inside a Pattern, Position is in beats relative to the start of the loop.
// Events handed out by a Cursor carry the absolute position instead
// (loop count * loop length + relative position).
type Event struct {
	Voice    Voice   `json:"voice" yaml:"voice"`
	Position float64 `json:"position" yaml:"position"`
	Loudness float64 `json:"loudness" yaml:"loudness"` // 0-1
}

// Pattern is a looping list of events. Events need not be sorted.
type Pattern struct {
	Events     []Event `json:"events" yaml:"events"`
	LoopLength float64 `json:"loopLength" yaml:"loop_length"` // beats
}

// Degenerate reports whether the pattern can never fire (no events or no loop length)
func (p Pattern) Degenerate() bool {
	return len(p.Events) == 0 || p.LoopLength <= 0
}

// Voices returns the distinct voices used by the pattern, in first-use order
func (p Pattern) Voices() []Voice {
	seen := make(map[Voice]bool, len(p.Events))
	var out []Voice
	for _, e := range p.Events {
		if !seen[e.Voice] {
			seen[e.Voice] = true
			out = append(out, e.Voice)
		}
	}
	return out
}
