package sequencer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeClicks() Pattern {
	return Pattern{
		LoopLength: 4,
		Events: []Event{
			{Voice: "c", Position: 2, Loudness: 0.3},
			{Voice: "a", Position: 0, Loudness: 1},
			{Voice: "b", Position: 1, Loudness: 0.5},
		},
	}
}

func positions(events []Event) []float64 {
	out := make([]float64, len(events))
	for i, e := range events {
		out[i] = e.Position
	}
	return out
}

func TestCursorSpansLoopsInOneCall(t *testing.T) {
	c := NewCursor(threeClicks())

	due := c.AdvanceTo(8)
	assert.Equal(t, []float64{0, 1, 2, 4, 5, 6}, positions(due))
	assert.Equal(t, Voice("a"), due[3].Voice)
	assert.Equal(t, 1.0, due[3].Loudness)
	assert.Equal(t, 2, c.Loops())
}

func TestCursorPartitionMatchesSingleQuery(t *testing.T) {
	boundaries := []float64{0, 0.2, 0.2, 1, 1.0001, 3.9, 4, 7.5, 13, 13.2, 21}

	split := NewCursor(threeClicks())
	var parts []Event
	for _, b := range boundaries {
		parts = append(parts, split.AdvanceTo(b)...)
	}

	whole := NewCursor(threeClicks()).AdvanceTo(21)
	assert.Equal(t, whole, parts)
}

func TestCursorLoopConservation(t *testing.T) {
	p := threeClicks()
	for k := 1; k <= 5; k++ {
		c := NewCursor(p)
		due := c.AdvanceTo(float64(k) * p.LoopLength)
		assert.Len(t, due, k*len(p.Events), "k=%d", k)
	}
}

func TestCursorBackwardQueryIsNoop(t *testing.T) {
	c := NewCursor(threeClicks())
	require.Len(t, c.AdvanceTo(5), 4)

	assert.Empty(t, c.AdvanceTo(3))
	assert.Empty(t, c.AdvanceTo(4.99))

	// The earlier queries must not have moved anything
	assert.Equal(t, []float64{5, 6}, positions(c.AdvanceTo(8)))
}

func TestCursorRepeatedBoundaryReturnsNothing(t *testing.T) {
	c := NewCursor(threeClicks())
	require.Len(t, c.AdvanceTo(2), 2)
	assert.Empty(t, c.AdvanceTo(2))
}

func TestCursorResetReplaysFromStart(t *testing.T) {
	c := NewCursor(threeClicks())
	first := c.AdvanceTo(9)

	c.Reset()
	assert.Equal(t, 0, c.Loops())
	assert.Equal(t, first, c.AdvanceTo(9))

	c.Reset()
	c.Reset()
	assert.Equal(t, first, c.AdvanceTo(9))
}

func TestCursorDegeneratePatterns(t *testing.T) {
	tests := []struct {
		name string
		p    Pattern
	}{
		{"no events", Pattern{LoopLength: 4}},
		{"zero length", Pattern{Events: []Event{{Voice: "a"}}}},
		{"negative length", Pattern{Events: []Event{{Voice: "a"}}, LoopLength: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.p.Degenerate())
			c := NewCursor(tt.p)
			assert.Empty(t, c.AdvanceTo(100))
			assert.Empty(t, c.AdvanceTo(1e9))
			assert.Equal(t, 0, c.Loops())
		})
	}
}

func TestCursorTiesKeepPatternOrder(t *testing.T) {
	p := Pattern{
		LoopLength: 2,
		Events: []Event{
			{Voice: "late", Position: 1},
			{Voice: "first", Position: 0},
			{Voice: "second", Position: 0},
			{Voice: "third", Position: 0},
		},
	}
	due := NewCursor(p).AdvanceTo(2)
	require.Len(t, due, 4)
	assert.Equal(t, []Voice{"first", "second", "third", "late"},
		[]Voice{due[0].Voice, due[1].Voice, due[2].Voice, due[3].Voice})
}

func TestCursorLeavesPatternUntouched(t *testing.T) {
	p := threeClicks()
	NewCursor(p).AdvanceTo(12)
	assert.Equal(t, Voice("c"), p.Events[0].Voice)
	assert.Equal(t, 2.0, p.Events[0].Position)
}

func TestCursorIgnoresNonFiniteBoundary(t *testing.T) {
	c := NewCursor(threeClicks())
	assert.Empty(t, c.AdvanceTo(math.Inf(1)))
	assert.Empty(t, c.AdvanceTo(math.NaN()))
	assert.Equal(t, []float64{0, 1}, positions(c.AdvanceTo(1.5)))
}

func TestPatternVoices(t *testing.T) {
	p := Pattern{Events: []Event{{Voice: "x"}, {Voice: "y"}, {Voice: "x"}}}
	assert.Equal(t, []Voice{"x", "y"}, p.Voices())
}
