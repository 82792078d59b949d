package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatch struct {
	at       float64
	voice    Voice
	loudness float64
}

// fakeSink is a sink with a hand-driven clock
type fakeSink struct {
	mu        sync.Mutex
	now       float64
	sent      []dispatch
	fail      map[Voice]error
	volume    float64
	resumed   int
	closed    int
	resumeErr error
}

func (f *fakeSink) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeSink) Schedule(at float64, v Voice, loudness float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[v]; err != nil {
		return err
	}
	f.sent = append(f.sent, dispatch{at: at, voice: v, loudness: loudness})
	return nil
}

func (f *fakeSink) SetVolume(level float64) {
	f.mu.Lock()
	f.volume = level
	f.mu.Unlock()
}

func (f *fakeSink) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed++
	return f.resumeErr
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) advance(dt float64) {
	f.mu.Lock()
	f.now += dt
	f.mu.Unlock()
}

func (f *fakeSink) dispatched() []dispatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatch(nil), f.sent...)
}

func newTestScheduler(p Pattern, opts ...Option) (*Scheduler, *fakeSink) {
	sink := &fakeSink{}
	s := New(sink, p, opts...)
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) { return nil, func() {} }
	return s, sink
}

// runFor advances the sink clock in 25ms steps and ticks after each step,
// the way the tick loop would.
func runFor(s *Scheduler, sink *fakeSink, seconds float64) {
	steps := int(seconds/0.025 + 0.5)
	for i := 0; i < steps; i++ {
		sink.advance(0.025)
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		if err := s.tickLocked(); err != nil {
			s.failLocked(err)
		}
		s.mu.Unlock()
	}
}

func times(ds []dispatch) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.at
	}
	return out
}

func TestStartCommitsFirstBeatImmediately(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())
	sink.now = 10

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Equal(t, 1, sink.resumed)

	sent := sink.dispatched()
	require.Len(t, sent, 1)
	assert.Equal(t, dispatch{at: 10, voice: "a", loudness: 1}, sent[0])
}

func TestDispatchTimesFollowTempo(t *testing.T) {
	s, sink := newTestScheduler(threeClicks(), WithTempo(120))
	require.NoError(t, s.Start())

	runFor(s, sink, 2.0)

	sent := sink.dispatched()
	require.Len(t, sent, 4)
	expected := []float64{0, 0.5, 1.0, 2.0}
	for i, at := range times(sent) {
		assert.InDelta(t, expected[i], at, 1e-9, "event %d", i)
	}
	assert.Equal(t, []Voice{"a", "b", "c", "a"},
		[]Voice{sent[0].voice, sent[1].voice, sent[2].voice, sent[3].voice})
}

func TestEventsAreCommittedWithinLookAhead(t *testing.T) {
	s, sink := newTestScheduler(threeClicks(), WithTempo(120))
	require.NoError(t, s.Start())

	// At 120 BPM the 100ms window is 0.2 beats, so beat 1 (0.5s) is not
	// committed before 0.4s of playback.
	runFor(s, sink, 0.375)
	assert.Len(t, sink.dispatched(), 1)

	runFor(s, sink, 0.05)
	assert.Len(t, sink.dispatched(), 2)
}

func TestTempoChangeKeepsPosition(t *testing.T) {
	s, sink := newTestScheduler(threeClicks(), WithTempo(120))
	require.NoError(t, s.Start())

	runFor(s, sink, 1.0) // beat 2
	require.NoError(t, s.SetTempo(60))
	assert.Equal(t, 60.0, s.Tempo())
	runFor(s, sink, 2.5)

	sent := sink.dispatched()
	require.Len(t, sent, 4)
	expected := []float64{0, 0.5, 1.0, 3.0}
	for i, at := range times(sent) {
		assert.InDelta(t, expected[i], at, 1e-9, "event %d", i)
	}
	assert.InDelta(t, 4.5, s.Position(), 1e-9)
}

func TestTempoChangeNeverSkipsOrRepeats(t *testing.T) {
	p := Pattern{LoopLength: 1, Events: []Event{
		{Voice: "x", Position: 0, Loudness: 1},
		{Voice: "y", Position: 0.5, Loudness: 1},
	}}
	s, sink := newTestScheduler(p, WithTempo(90))
	require.NoError(t, s.Start())

	for i, bpm := range []float64{90, 200, 45, 300, 60, 133} {
		require.NoError(t, s.SetTempo(bpm))
		runFor(s, sink, 0.4+float64(i)*0.1)
	}

	sent := sink.dispatched()
	require.NotEmpty(t, sent)
	for i := 1; i < len(sent); i++ {
		assert.Greater(t, sent[i].at, sent[i-1].at, "dispatch %d not after %d", i, i-1)
		assert.NotEqual(t, sent[i].voice, sent[i-1].voice, "voices must alternate at %d", i)
	}
}

func TestSetTempoRejectsInvalid(t *testing.T) {
	s, _ := newTestScheduler(threeClicks())
	for _, bpm := range []float64{0, -10} {
		err := s.SetTempo(bpm)
		assert.ErrorIs(t, err, ErrInvalidTempo)
	}
	assert.Equal(t, DefaultTempo, s.Tempo())
}

func TestSetVolumeClampsAndForwards(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())

	s.SetVolume(1.7)
	assert.Equal(t, 1.0, s.Volume())
	assert.Equal(t, 1.0, sink.volume)

	s.SetVolume(-0.2)
	assert.Equal(t, 0.0, sink.volume)

	s.SetVolume(0.4)
	assert.Equal(t, 0.4, s.Volume())
}

func TestStopIsIdempotentAndStartRestartsAtZero(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.Equal(t, 1, sink.resumed)

	runFor(s, sink, 1.0)
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
	n := len(sink.dispatched())

	runFor(s, sink, 1.0)
	assert.Len(t, sink.dispatched(), n, "no dispatches while stopped")

	require.NoError(t, s.Start())
	sent := sink.dispatched()
	require.Len(t, sent, n+1)
	assert.Equal(t, Voice("a"), sent[n].voice)
	assert.InDelta(t, sink.Now(), sent[n].at, 1e-9)
}

func TestSwitchPatternWhileRunning(t *testing.T) {
	s, sink := newTestScheduler(threeClicks(), WithTempo(100))
	require.NoError(t, s.Start())
	runFor(s, sink, 1.3)

	next := Pattern{LoopLength: 2, Events: []Event{{Voice: "z", Position: 0, Loudness: 0.8}}}
	require.NoError(t, s.SwitchPattern(next))

	assert.True(t, s.IsRunning())
	assert.Equal(t, 100.0, s.Tempo())
	assert.Equal(t, next, s.Pattern())

	sent := sink.dispatched()
	last := sent[len(sent)-1]
	assert.Equal(t, Voice("z"), last.voice)
	assert.InDelta(t, sink.Now(), last.at, 1e-9)
}

func TestSwitchPatternWhileIdleStaysIdle(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())
	require.NoError(t, s.SwitchPattern(Pattern{LoopLength: 1, Events: []Event{{Voice: "z"}}}))
	assert.False(t, s.IsRunning())
	assert.Empty(t, sink.dispatched())
	assert.Equal(t, 0, sink.resumed)
}

func TestDegeneratePatternNeverDispatches(t *testing.T) {
	s, sink := newTestScheduler(Pattern{LoopLength: 0, Events: []Event{{Voice: "a"}}})
	require.NoError(t, s.Start())
	runFor(s, sink, 3)
	assert.True(t, s.IsRunning())
	assert.Empty(t, sink.dispatched())
}

func TestDispatchFailureStopsPlayback(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())
	sink.fail = map[Voice]error{"c": ErrAssetUnavailable}
	require.NoError(t, s.Start())

	runFor(s, sink, 2)

	assert.False(t, s.IsRunning())
	assert.Len(t, sink.dispatched(), 2)

	var de *DispatchError
	require.ErrorAs(t, s.Err(), &de)
	assert.Equal(t, Voice("c"), de.Voice)
	assert.Equal(t, 2.0, de.Position)
	assert.ErrorIs(t, s.Err(), ErrAssetUnavailable)

	select {
	case err := <-s.Errors():
		assert.Equal(t, s.Err(), err)
	default:
		t.Fatal("expected error on Errors channel")
	}
}

func TestStartFailsWhenFirstBeatCannotDispatch(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())
	sink.fail = map[Voice]error{"a": ErrUnknownVoice}

	err := s.Start()
	assert.ErrorIs(t, err, ErrUnknownVoice)
	assert.False(t, s.IsRunning())
}

func TestStartFailsWhenResumeFails(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())
	sink.resumeErr = errors.New("device asleep")

	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
	assert.Empty(t, sink.dispatched())
}

func TestDestroyIsTerminal(t *testing.T) {
	s, sink := newTestScheduler(threeClicks())
	require.NoError(t, s.Start())

	require.NoError(t, s.Destroy())
	require.NoError(t, s.Destroy())
	assert.Equal(t, 1, sink.closed)
	assert.False(t, s.IsRunning())

	assert.ErrorIs(t, s.Start(), ErrDestroyed)
	assert.ErrorIs(t, s.SwitchPattern(threeClicks()), ErrDestroyed)
}

func TestCreateWrapsAcquireFailure(t *testing.T) {
	boom := errors.New("no device")
	_, err := Create(context.Background(), 1, threeClicks(), func(context.Context) (Sink, error) {
		return nil, boom
	})

	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, boom)

	_, err = Create(context.Background(), 1, threeClicks(), func(context.Context) (Sink, error) {
		return nil, NewResourceError("midi:foo", boom)
	})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "midi:foo", re.Device)
}

func TestCreateAppliesVolumeAndOptions(t *testing.T) {
	sink := &fakeSink{}
	s, err := Create(context.Background(), 0.3, threeClicks(), func(context.Context) (Sink, error) {
		return sink, nil
	}, WithTempo(75), WithTickInterval(10*time.Millisecond), WithScheduleAhead(50*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, 0.3, sink.volume)
	assert.Equal(t, 75.0, s.Tempo())
	assert.Equal(t, 10*time.Millisecond, s.tickInterval)
	assert.Equal(t, 50*time.Millisecond, s.scheduleAhead)
	assert.False(t, s.IsRunning())
}

func TestTickLoopDrivesDispatches(t *testing.T) {
	s, sink := newTestScheduler(threeClicks(), WithTempo(120))
	ticks := make(chan time.Time)
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) { return ticks, func() {} }

	require.NoError(t, s.Start())
	<-s.Updates()

	sink.advance(0.45)
	ticks <- time.Now()
	<-s.Updates()

	sent := sink.dispatched()
	require.Len(t, sent, 2)
	assert.InDelta(t, 0.5, sent[1].at, 1e-9)

	sink.mu.Lock()
	sink.fail = map[Voice]error{"c": ErrAssetUnavailable}
	sink.mu.Unlock()
	sink.advance(0.5)
	ticks <- time.Now()

	select {
	case err := <-s.Errors():
		assert.ErrorIs(t, err, ErrAssetUnavailable)
	case <-time.After(time.Second):
		t.Fatal("tick loop did not report the dispatch failure")
	}
	assert.False(t, s.IsRunning())
}
