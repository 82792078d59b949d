package midi

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// Event is a MIDI message waiting in the output queue
type Event struct {
	At       float64 // seconds on the sink clock
	Type     uint8   // NoteOn, NoteOff
	Note     uint8
	Velocity uint8
}

// eventQueue is kept sorted by At; equal times keep insertion order
type eventQueue []Event

func (q *eventQueue) push(e Event) {
	i := len(*q)
	for i > 0 && (*q)[i-1].At > e.At {
		i--
	}
	*q = append(*q, Event{})
	copy((*q)[i+1:], (*q)[i:])
	(*q)[i] = e
}

func (q eventQueue) peek() *Event {
	if len(q) == 0 {
		return nil
	}
	return &q[0]
}

func (q *eventQueue) pop() Event {
	e := (*q)[0]
	*q = (*q)[1:]
	return e
}
