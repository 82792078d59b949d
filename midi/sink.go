package midi

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-metronome/sequencer"
)

// DefaultGate is how long each note is held before its NoteOff
const DefaultGate = 30 * time.Millisecond

// Config selects the MIDI output
type Config struct {
	Port    string // output port name (substring match); first port if empty
	Channel uint8  // 1-16
	Kit     string
	Gate    time.Duration
}

// Sink sends voices as drum notes to a MIDI port. It implements
// sequencer.Sink on a wall clock starting when the sink is created.
type Sink struct {
	send    func(gomidi.Message) error
	channel uint8 // 0-15
	kit     Kit
	gate    time.Duration

	start time.Time
	now   func() time.Time

	mu      sync.Mutex
	queue   eventQueue
	volume  float64
	sendErr error

	interrupt chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSink starts the output loop over send
func NewSink(send func(gomidi.Message) error, cfg Config) *Sink {
	return newSink(send, cfg, time.Now)
}

func newSink(send func(gomidi.Message) error, cfg Config, now func() time.Time) *Sink {
	ch := cfg.Channel
	if ch < 1 || ch > 16 {
		ch = 10 // GM drums
	}
	gate := cfg.Gate
	if gate <= 0 {
		gate = DefaultGate
	}
	s := &Sink{
		send:      send,
		channel:   ch - 1,
		kit:       GetKit(cfg.Kit),
		gate:      gate,
		start:     now(),
		now:       now,
		volume:    1,
		interrupt: make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.outputLoop()
	return s
}

// Open finds the output port and returns a sink on it
func Open(cfg Config) (*Sink, error) {
	out, err := findOutPort(cfg.Port)
	if err != nil {
		return nil, sequencer.NewResourceError("midi:"+cfg.Port, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, sequencer.NewResourceError("midi:"+out.String(), err)
	}
	log.Info().Str("port", out.String()).Str("kit", GetKit(cfg.Kit).Name).Msg("midi output open")
	return NewSink(send, cfg), nil
}

// Acquire returns an Acquirer that opens the MIDI output with cfg
func Acquire(cfg Config) sequencer.Acquirer {
	return func(ctx context.Context) (sequencer.Sink, error) {
		s, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (s *Sink) Now() float64 {
	return s.now().Sub(s.start).Seconds()
}

// Schedule queues a NoteOn at at and its NoteOff one gate later. A failed
// send from the output loop is reported by the next Schedule.
func (s *Sink) Schedule(at float64, v sequencer.Voice, loudness float64) error {
	note, ok := s.kit.Note(v)
	if !ok {
		return fmt.Errorf("%w: %s not in kit %s", sequencer.ErrUnknownVoice, v, s.kit.Name)
	}

	s.mu.Lock()
	if err := s.sendErr; err != nil {
		s.mu.Unlock()
		return err
	}
	vel := velocity(loudness * s.volume)
	if vel > 0 {
		s.queue.push(Event{At: at, Type: NoteOn, Note: note, Velocity: vel})
		s.queue.push(Event{At: at + s.gate.Seconds(), Type: NoteOff, Note: note})
	}
	s.mu.Unlock()

	s.wake()
	return nil
}

// SetVolume scales note velocities
func (s *Sink) SetVolume(level float64) {
	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
}

// Resume is a no-op; MIDI ports are never suspended
func (s *Sink) Resume() error {
	return nil
}

// Close stops the output loop, releasing any held notes
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done

		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()
		for _, e := range pending {
			if e.Type == NoteOff {
				s.send(gomidi.NoteOff(s.channel, e.Note))
			}
		}
	})
	return nil
}

// Pending returns the number of queued messages
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// wake signals the output loop to recalculate (queue changed)
func (s *Sink) wake() {
	select {
	case s.interrupt <- struct{}{}:
	default:
	}
}

// outputLoop waits for the earliest queued message and sends it on time
func (s *Sink) outputLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)

	for {
		s.mu.Lock()
		next := s.queue.peek()
		var wait time.Duration
		if next != nil {
			wait = time.Duration((next.At - s.Now()) * float64(time.Second))
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.stop:
				return
			case <-s.interrupt:
			}
			continue
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-s.stop:
				timer.Stop()
				return
			case <-s.interrupt:
				// An earlier event may have arrived
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		s.mu.Lock()
		evt := s.queue.pop()
		s.mu.Unlock()

		var err error
		switch evt.Type {
		case NoteOn:
			err = s.send(gomidi.NoteOn(s.channel, evt.Note, evt.Velocity))
		case NoteOff:
			err = s.send(gomidi.NoteOff(s.channel, evt.Note))
		}
		if err != nil {
			log.Error().Err(err).Uint8("note", evt.Note).Msg("midi send failed")
			s.mu.Lock()
			s.sendErr = err
			s.mu.Unlock()
		}
	}
}

// velocity maps 0-1 loudness to 1-127; silence is 0 (not sent)
func velocity(loudness float64) uint8 {
	if !(loudness > 0) {
		return 0
	}
	v := math.Round(loudness * 127)
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}
