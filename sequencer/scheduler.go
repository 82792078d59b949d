package sequencer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"go-metronome/debug"
)

const (
	DefaultTickInterval  = 25 * time.Millisecond
	DefaultScheduleAhead = 100 * time.Millisecond
	DefaultTempo         = 120.0
)

// Scheduler turns a pattern into timed sink dispatches.
//
// Every tick integrates the elapsed sink time into a continuous beat
// position at the current tempo, then commits everything the cursor
// yields within the look-ahead window. Public methods and the tick share
// one mutex, so changes take effect from the next tick.
type Scheduler struct {
	mu sync.Mutex

	sink    Sink
	pattern Pattern
	cursor  *Cursor

	tempo    float64
	volume   float64
	position float64 // beats since Start
	lastTick float64 // sink seconds

	running   bool
	destroyed bool
	cancel    context.CancelFunc

	err  error
	errs chan error

	tickInterval  time.Duration
	scheduleAhead time.Duration
	newTicker     func(time.Duration) (<-chan time.Time, func())

	// Notify UI of updates
	updates chan struct{}
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithTickInterval sets how often the scheduler wakes up
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithScheduleAhead sets how far past the playhead events are committed
func WithScheduleAhead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.scheduleAhead = d
		}
	}
}

// WithTempo sets the initial tempo in BPM
func WithTempo(bpm float64) Option {
	return func(s *Scheduler) {
		if validTempo(bpm) {
			s.tempo = bpm
		}
	}
}

// Create acquires the output device and returns an idle scheduler over p.
func Create(ctx context.Context, volume float64, p Pattern, acquire Acquirer, opts ...Option) (*Scheduler, error) {
	sink, err := acquire(ctx)
	if err != nil {
		var re *ResourceError
		if !errors.As(err, &re) {
			err = NewResourceError("output", err)
		}
		return nil, err
	}
	s := New(sink, p, opts...)
	s.SetVolume(volume)
	return s, nil
}

// New returns an idle scheduler over an already acquired sink
func New(sink Sink, p Pattern, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:          sink,
		pattern:       p,
		cursor:        NewCursor(p),
		tempo:         DefaultTempo,
		volume:        1,
		errs:          make(chan error, 1),
		tickInterval:  DefaultTickInterval,
		scheduleAhead: DefaultScheduleAhead,
		newTicker:     realTicker,
		updates:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start begins playback from beat 0. No-op if already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	return s.startLocked()
}

func (s *Scheduler) startLocked() error {
	if s.running {
		return nil
	}
	if err := s.sink.Resume(); err != nil {
		return fmt.Errorf("resume output: %w", err)
	}

	s.position = 0
	s.cursor.Reset()
	s.lastTick = s.sink.Now()
	s.err = nil
	s.running = true

	// Commit beat 0 now rather than one interval late
	if err := s.tickLocked(); err != nil {
		s.failLocked(err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	c, stop := s.newTicker(s.tickInterval)
	go s.run(ctx, c, stop)

	log.Debug().Float64("bpm", s.tempo).Int("events", s.cursor.Len()).Msg("scheduler started")
	s.notify()
	return nil
}

// Stop halts the tick loop. Dispatches already handed to the sink still play.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	log.Debug().Float64("beat", s.position).Msg("scheduler stopped")
	s.notify()
}

// run drives ticks for one session. Ticks arriving after the session's
// context is cancelled are dropped.
func (s *Scheduler) run(ctx context.Context, c <-chan time.Time, stop func()) {
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
			s.mu.Lock()
			if ctx.Err() != nil {
				s.mu.Unlock()
				return
			}
			err := s.tickLocked()
			if err != nil {
				s.failLocked(err)
			}
			s.mu.Unlock()
			s.notify()
			if err != nil {
				return
			}
		}
	}
}

// tickLocked advances the beat clock and commits the look-ahead window.
func (s *Scheduler) tickLocked() error {
	now := s.sink.Now()
	spb := 60 / s.tempo

	s.position += (now - s.lastTick) / spb
	lookAhead := s.scheduleAhead.Seconds() / spb

	due := s.cursor.AdvanceTo(s.position + lookAhead)
	for _, e := range due {
		at := now + (e.Position-s.position)*spb
		if err := s.sink.Schedule(at, e.Voice, e.Loudness); err != nil {
			return &DispatchError{Voice: e.Voice, Position: e.Position, At: at, Err: err}
		}
	}
	s.lastTick = now

	if len(due) > 0 && debug.Every(50, "tick") {
		log.Debug().
			Float64("beat", s.position).
			Float64("now", now).
			Int("due", len(due)).
			Int("loops", s.cursor.Loops()).
			Msg("tick")
	}
	return nil
}

func (s *Scheduler) failLocked(err error) {
	log.Error().Err(err).Msg("dispatch failed, stopping playback")
	s.err = err
	s.stopLocked()
	select {
	case s.errs <- err:
	default:
	}
}

func (s *Scheduler) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// SetTempo changes the tempo from the next tick on. The beat position
// accumulated so far is kept as is.
func (s *Scheduler) SetTempo(bpm float64) error {
	if !validTempo(bpm) {
		return fmt.Errorf("%w: %v", ErrInvalidTempo, bpm)
	}
	s.mu.Lock()
	s.tempo = bpm
	s.mu.Unlock()
	s.notify()
	return nil
}

// Tempo returns the current tempo in BPM
func (s *Scheduler) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

// SetVolume sets the master volume, clamped to 0-1
func (s *Scheduler) SetVolume(level float64) {
	level = clamp01(level)
	s.mu.Lock()
	s.volume = level
	s.sink.SetVolume(level)
	s.mu.Unlock()
	s.notify()
}

// Volume returns the master volume
func (s *Scheduler) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SwitchPattern replaces the pattern. Tempo and running state are kept;
// a running scheduler restarts from beat 0 of the new pattern.
func (s *Scheduler) SwitchPattern(p Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}

	wasRunning := s.running
	s.stopLocked()
	s.pattern = p
	s.cursor = NewCursor(p)
	s.position = 0
	log.Debug().Int("events", len(p.Events)).Float64("loop", p.LoopLength).Msg("pattern switched")

	if wasRunning {
		return s.startLocked()
	}
	s.notify()
	return nil
}

// Pattern returns the current pattern
func (s *Scheduler) Pattern() Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

// IsRunning reports whether the tick loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Position returns the playhead in beats since Start, interpolated to the
// sink clock while running. For display only.
func (s *Scheduler) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return s.position
	}
	return s.position + (s.sink.Now()-s.lastTick)*s.tempo/60
}

// Err returns the dispatch error that stopped the last session, if any
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Errors delivers dispatch errors as they stop playback
func (s *Scheduler) Errors() <-chan error {
	return s.errs
}

// Updates signals (without blocking) whenever state visible to a UI changes
func (s *Scheduler) Updates() <-chan struct{} {
	return s.updates
}

// Destroy stops playback and releases the sink. The scheduler cannot be
// started again.
func (s *Scheduler) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.stopLocked()
	s.destroyed = true
	if err := s.sink.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 0) && !math.IsNaN(bpm)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
