package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// pedalThreshold is the CC value at which a sustain-style switch counts as down
const pedalThreshold = 64

// PedalController turns any MIDI input into start/stop presses: a NoteOn,
// or a CC crossing into the down half (sustain pedals, foot switches).
type PedalController struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	down   map[uint8]bool // CC numbers currently held
	events chan PedalEvent

	mu     sync.Mutex
	closed bool
}

// NewPedalController listens on inPort (input only)
func NewPedalController(id string, inPort drivers.In) (*PedalController, error) {
	p := newPedal(id)
	p.inPort = inPort

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			p.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		p.stopFunc = stop
	}

	return p, nil
}

func newPedal(id string) *PedalController {
	return &PedalController{
		id:     id,
		down:   make(map[uint8]bool),
		events: make(chan PedalEvent, 32),
	}
}

// handle runs on the driver's callback goroutine only
func (p *PedalController) handle(msg gomidi.Message) {
	var channel, key, value uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &value) && value > 0:
		p.emit(PedalEvent{Source: p.id, Note: key, Velocity: value})
	case msg.GetControlChange(&channel, &key, &value):
		pressed := value >= pedalThreshold
		if pressed && !p.down[key] {
			p.emit(PedalEvent{Source: p.id, Note: key, Velocity: value})
		}
		p.down[key] = pressed
	}
}

func (p *PedalController) emit(e PedalEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- e:
	default:
		// Drop if channel full
	}
}

func (p *PedalController) ID() string {
	return p.id
}

func (p *PedalController) Type() ControllerType {
	return ControllerPedal
}

func (p *PedalController) Events() <-chan PedalEvent {
	return p.events
}

func (p *PedalController) Close() error {
	if p.stopFunc != nil {
		p.stopFunc()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	return nil
}
