package midi

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-metronome/sequencer"
)

type recorder struct {
	mu   sync.Mutex
	msgs []gomidi.Message
	err  error
}

func (r *recorder) send(msg gomidi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) snapshot() []gomidi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gomidi.Message(nil), r.msgs...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestQueueKeepsTimeOrder(t *testing.T) {
	var q eventQueue
	q.push(Event{At: 3, Note: 3})
	q.push(Event{At: 1, Note: 1})
	q.push(Event{At: 2, Note: 2})
	q.push(Event{At: 1, Note: 4})

	var notes []uint8
	for q.peek() != nil {
		notes = append(notes, q.pop().Note)
	}
	assert.Equal(t, []uint8{1, 4, 2, 3}, notes)
}

func TestVelocity(t *testing.T) {
	assert.Equal(t, uint8(0), velocity(0))
	assert.Equal(t, uint8(0), velocity(-1))
	assert.Equal(t, uint8(1), velocity(0.001))
	assert.Equal(t, uint8(64), velocity(0.5))
	assert.Equal(t, uint8(127), velocity(1))
	assert.Equal(t, uint8(127), velocity(3))
}

func TestKitsCoverTheSameVoices(t *testing.T) {
	gm := GetKit("gm")
	for _, name := range KitNames() {
		kit := GetKit(name)
		assert.Len(t, kit.Notes, len(gm.Notes), name)
		for v := range gm.Notes {
			_, ok := kit.Note(v)
			assert.True(t, ok, "%s missing %s", name, v)
		}
	}
	assert.Equal(t, "General MIDI", GetKit("nope").Name)
	n, ok := gm.Note("perc_metronomequartz")
	require.True(t, ok)
	assert.Equal(t, uint8(33), n)
}

func TestSinkSendsNotesInTimeOrder(t *testing.T) {
	rec := &recorder{}
	s := NewSink(rec.send, Config{Channel: 10, Kit: "gm", Gate: 5 * time.Millisecond})
	defer s.Close()

	now := s.Now()
	require.NoError(t, s.Schedule(now+0.04, "perc_stick", 1))
	require.NoError(t, s.Schedule(now+0.02, "synth1", 0.5))

	require.Eventually(t, func() bool { return rec.count() == 4 }, 2*time.Second, 5*time.Millisecond)

	msgs := rec.snapshot()
	var ch, key, vel uint8
	require.True(t, msgs[0].GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(9), ch)
	assert.Equal(t, uint8(76), key)
	assert.Equal(t, uint8(64), vel)

	require.True(t, msgs[1].GetNoteOff(&ch, &key, &vel))
	assert.Equal(t, uint8(76), key)

	require.True(t, msgs[2].GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(37), key)
	assert.Equal(t, uint8(127), vel)
	assert.Equal(t, 0, s.Pending())
}

func TestSinkScalesByVolume(t *testing.T) {
	rec := &recorder{}
	s := NewSink(rec.send, Config{})
	defer s.Close()

	s.SetVolume(0)
	require.NoError(t, s.Schedule(s.Now(), "synth1", 1))
	assert.Equal(t, 0, s.Pending())

	s.SetVolume(0.5)
	require.NoError(t, s.Schedule(s.Now()+10, "synth1", 1))
	assert.Equal(t, 2, s.Pending())
}

func TestSinkRejectsUnknownVoice(t *testing.T) {
	s := NewSink((&recorder{}).send, Config{})
	defer s.Close()

	err := s.Schedule(s.Now(), "cowbell-deluxe", 1)
	assert.ErrorIs(t, err, sequencer.ErrUnknownVoice)
}

func TestSinkReportsSendFailure(t *testing.T) {
	rec := &recorder{err: errors.New("port gone")}
	s := NewSink(rec.send, Config{})
	defer s.Close()

	require.NoError(t, s.Schedule(s.Now(), "synth1", 1))
	require.Eventually(t, func() bool {
		return s.Schedule(s.Now()+10, "synth1", 1) != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSinkCloseReleasesHeldNotes(t *testing.T) {
	rec := &recorder{}
	s := NewSink(rec.send, Config{})

	require.NoError(t, s.Schedule(s.Now()+30, "perc_glass", 1))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	msgs := rec.snapshot()
	require.Len(t, msgs, 1)
	var ch, key, vel uint8
	require.True(t, msgs[0].GetNoteOff(&ch, &key, &vel))
	assert.Equal(t, uint8(81), key)
}

func TestSinkClockAdvances(t *testing.T) {
	base := time.Unix(100, 0)
	now := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := newSink((&recorder{}).send, Config{}, clock)
	defer s.Close()

	assert.Equal(t, 0.0, s.Now())
	mu.Lock()
	now = base.Add(1500 * time.Millisecond)
	mu.Unlock()
	assert.InDelta(t, 1.5, s.Now(), 1e-9)
	assert.NoError(t, s.Resume())
}

func TestPedalPresses(t *testing.T) {
	p := newPedal("FS-1")

	p.handle(gomidi.NoteOn(0, 60, 100))
	p.handle(gomidi.NoteOn(0, 60, 0))
	p.handle(gomidi.ControlChange(0, 64, 127))
	p.handle(gomidi.ControlChange(0, 64, 120)) // still held
	p.handle(gomidi.ControlChange(0, 64, 0))
	p.handle(gomidi.ControlChange(0, 64, 90))
	require.NoError(t, p.Close())

	var got []PedalEvent
	for e := range p.Events() {
		got = append(got, e)
	}
	require.Len(t, got, 3)
	assert.Equal(t, PedalEvent{Source: "FS-1", Note: 60, Velocity: 100}, got[0])
	assert.Equal(t, uint8(64), got[1].Note)
	assert.Equal(t, uint8(90), got[2].Velocity)
	assert.Equal(t, ControllerPedal, p.Type())
}

func TestDeviceManagerHotPlug(t *testing.T) {
	var mu sync.Mutex
	ports := []string{"IAC Bus 1", "Boss FS-5U Pedal"}

	dm := NewDeviceManager("pedal")
	dm.listIn = func() ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), ports...), nil
	}
	dm.connect = func(name string) (Controller, error) {
		return newPedal(name), nil
	}

	dm.scan()
	evt := <-dm.Events()
	assert.Equal(t, DeviceConnected, evt.Type)
	assert.Equal(t, "Boss FS-5U Pedal", evt.ID)
	assert.Len(t, dm.Controllers(), 1)

	// Still present: no new event
	dm.scan()
	assert.Empty(t, dm.events)

	mu.Lock()
	ports = ports[:1]
	mu.Unlock()
	dm.scan()
	evt = <-dm.Events()
	assert.Equal(t, DeviceDisconnected, evt.Type)
	assert.Empty(t, dm.Controllers())
}

func TestDeviceManagerSkipsFailedScan(t *testing.T) {
	dm := NewDeviceManager("pedal")
	dm.listIn = func() ([]string, error) { return nil, ErrTimeout }
	dm.scan()
	assert.Empty(t, dm.events)
}

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through", "USB MIDI Interface"}
	assert.Equal(t, 1, matchPort(names, "usb midi"))
	assert.Equal(t, -1, matchPort(names, "launchpad"))
}
