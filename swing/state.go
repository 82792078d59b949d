package swing

import (
	"errors"
	"fmt"
	"math"

	"go-metronome/sequencer"
)

var ErrInvalidDuration = errors.New("swing duration must be positive")

// Preset is a swing timing in video frames, written backswing/downswing
type Preset struct {
	Backswing int
	Downswing int
}

func (p Preset) String() string {
	return fmt.Sprintf("%d/%d", p.Backswing, p.Downswing)
}

// DefaultPreset is 21/7 at 3:1
var DefaultPreset = Preset{Backswing: 21, Downswing: 7}

// Presets lists the preset buttons for a ratio
func Presets(r Ratio) []Preset {
	var downs []int
	if r == Ratio2To1 {
		downs = []int{7, 8, 9, 10}
	} else {
		downs = []int{6, 7, 8, 9}
	}
	out := make([]Preset, len(downs))
	for i, d := range downs {
		out[i] = Preset{Backswing: d * int(r), Downswing: d}
	}
	return out
}

// State is the swing being practised. One internal beat lasts one
// downswing; the scheduler runs at InternalBPM.
type State struct {
	ratio       Ratio
	emphasize   bool
	downswingMs float64
}

// NewState returns a state at the given ratio and downswing frame count
func NewState(r Ratio, emphasizeImpact bool, downswingFrames float64) *State {
	if !r.Valid() {
		r = Ratio3To1
	}
	if downswingFrames <= 0 {
		downswingFrames = float64(DefaultPreset.Downswing)
	}
	return &State{
		ratio:       r,
		emphasize:   emphasizeImpact,
		downswingMs: FrameNotationToMs(downswingFrames),
	}
}

func (s *State) Ratio() Ratio { return s.ratio }
func (s *State) EmphasizeImpact() bool { return s.emphasize }
func (s *State) DownswingMs() float64 { return s.downswingMs }
func (s *State) BackswingMs() float64 { return BackswingMs(s.downswingMs, s.ratio) }
func (s *State) TotalMs() float64 { return s.BackswingMs() + s.downswingMs }
func (s *State) DownswingFrames() float64 { return MsToFrames(s.downswingMs) }

// InternalBPM is the scheduler tempo: one beat per downswing
func (s *State) InternalBPM() float64 {
	return MsToBPM(s.downswingMs)
}

// DisplayBPM is one beat per whole swing
func (s *State) DisplayBPM() float64 {
	return MsToBPM(s.TotalMs())
}

// PerceivedBPM is the tempo of the accented pulse
func (s *State) PerceivedBPM() float64 {
	return MsToBPM(s.downswingMs * float64(s.Layout().PerceivedBeats))
}

// Layout returns the pattern for the current ratio and emphasis
func (s *State) Layout() Layout {
	return Build(s.ratio, s.emphasize)
}

// Pattern returns the pattern for the current ratio and emphasis
func (s *State) Pattern() sequencer.Pattern {
	return s.Layout().Pattern
}

// SetRatio switches ratio keeping the total swing time
func (s *State) SetRatio(r Ratio) error {
	if !r.Valid() {
		return fmt.Errorf("unsupported ratio %d", int(r))
	}
	total := s.TotalMs()
	s.ratio = r
	s.downswingMs = total / float64(r+1)
	return nil
}

// ToggleRatio flips between 2:1 and 3:1
func (s *State) ToggleRatio() {
	if s.ratio == Ratio2To1 {
		_ = s.SetRatio(Ratio3To1)
	} else {
		_ = s.SetRatio(Ratio2To1)
	}
}

// SetEmphasizeImpact chooses whether impact or top gets the accent
func (s *State) SetEmphasizeImpact(v bool) {
	s.emphasize = v
}

// SetDownswingMs sets the downswing duration
func (s *State) SetDownswingMs(ms float64) error {
	if !(ms > 0) || math.IsInf(ms, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, ms)
	}
	s.downswingMs = ms
	return nil
}

// SetBackswingMs sets the backswing duration, deriving the downswing
func (s *State) SetBackswingMs(ms float64) error {
	return s.SetDownswingMs(ms / float64(s.ratio))
}

// NudgeFrames lengthens (or shortens, for negative delta) the downswing by
// whole frames. The downswing never drops below one frame.
func (s *State) NudgeFrames(delta int) {
	frames := math.Round(s.DownswingFrames()) + float64(delta)
	if frames < 1 {
		frames = 1
	}
	s.downswingMs = FrameNotationToMs(frames)
}

// LoadPreset applies a preset's downswing
func (s *State) LoadPreset(p Preset) error {
	return s.SetDownswingMs(FrameNotationToMs(float64(p.Downswing)))
}
