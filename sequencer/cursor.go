package sequencer

import (
	"math"
	"sort"
)

// Cursor walks a looping pattern forward in beat space.
//
// The cursor knows nothing about tempo or time: callers ask for everything
// due before some beat position and get each event exactly once, tagged
// with its absolute position. Positions are expected in [0, LoopLength).
type Cursor struct {
	events     []Event // sorted by Position, never mutated after NewCursor
	loopLength float64

	index     int
	loops     int
	highWater float64
}

// NewCursor sorts a copy of the pattern's events once. Events sharing a
// position keep their pattern order.
func NewCursor(p Pattern) *Cursor {
	events := make([]Event, len(p.Events))
	copy(events, p.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Position < events[j].Position
	})
	return &Cursor{
		events:     events,
		loopLength: p.LoopLength,
	}
}

// AdvanceTo returns every event whose absolute position is below boundary
// and was not returned before, in ascending order. A boundary behind the
// last accepted one returns nothing and leaves the cursor untouched.
func (c *Cursor) AdvanceTo(boundary float64) []Event {
	if c.degenerate() || boundary < c.highWater {
		return nil
	}
	if math.IsNaN(boundary) || math.IsInf(boundary, 1) {
		return nil
	}

	var due []Event
	for {
		e := c.events[c.index]
		abs := float64(c.loops)*c.loopLength + e.Position
		if abs >= boundary {
			break
		}
		due = append(due, Event{Voice: e.Voice, Position: abs, Loudness: e.Loudness})

		c.index++
		if c.index == len(c.events) {
			c.index = 0
			c.loops++
		}
	}
	c.highWater = boundary
	return due
}

// Reset rewinds to the start of the first loop.
func (c *Cursor) Reset() {
	c.index = 0
	c.loops = 0
	c.highWater = 0
}

// Loops returns how many complete loops have been handed out
func (c *Cursor) Loops() int {
	return c.loops
}

// Len returns the number of events per loop
func (c *Cursor) Len() int {
	return len(c.events)
}

func (c *Cursor) degenerate() bool {
	return len(c.events) == 0 || c.loopLength <= 0
}
