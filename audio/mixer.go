package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// bytesPerFrame for interleaved float32 stereo
const bytesPerFrame = 8

// Mixer sums scheduled voice buffers into one stereo stream.
//
// It is the io.Reader behind the oto player, so its frame counter is the
// sink clock: Now advances only as the device pulls audio.
type Mixer struct {
	sampleRate int

	mu      sync.Mutex
	pos     int64 // frames rendered so far
	gain    float64
	voices  []*voiceState
	scratch [][2]float32
}

type voiceState struct {
	start  int64 // absolute frame
	frames [][2]float32
	gain   float32
}

// NewMixer returns a silent mixer at unity gain
func NewMixer(sampleRate int) *Mixer {
	return &Mixer{sampleRate: sampleRate, gain: 1}
}

// Now returns the mixer clock in seconds
func (m *Mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.pos) / float64(m.sampleRate)
}

// Schedule plays frames at time at (seconds on the mixer clock), scaled by
// gain. Times already rendered start with the next rendered frame.
func (m *Mixer) Schedule(at float64, frames [][2]float32, gain float64) {
	if len(frames) == 0 {
		return
	}
	start := int64(math.Round(at * float64(m.sampleRate)))
	m.mu.Lock()
	if start < m.pos {
		start = m.pos
	}
	m.voices = append(m.voices, &voiceState{start: start, frames: frames, gain: float32(gain)})
	m.mu.Unlock()
}

// SetGain sets the master gain
func (m *Mixer) SetGain(g float64) {
	m.mu.Lock()
	m.gain = g
	m.mu.Unlock()
}

// Active returns the number of voices queued or sounding
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render mixes the next len(dst) frames into dst and advances the clock
func (m *Mixer) Render(dst [][2]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderLocked(dst)
}

func (m *Mixer) renderLocked(dst [][2]float32) {
	for i := range dst {
		dst[i] = [2]float32{}
	}
	from := m.pos
	to := from + int64(len(dst))

	keep := m.voices[:0]
	for _, v := range m.voices {
		end := v.start + int64(len(v.frames))
		lo := max(v.start, from)
		hi := min(end, to)
		for f := lo; f < hi; f++ {
			s := v.frames[f-v.start]
			d := &dst[f-from]
			d[0] += s[0] * v.gain
			d[1] += s[1] * v.gain
		}
		if end > to {
			keep = append(keep, v)
		}
	}
	for i := len(keep); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = keep

	g := float32(m.gain)
	for i := range dst {
		dst[i][0] = clip(dst[i][0] * g)
		dst[i][1] = clip(dst[i][1] * g)
	}
	m.pos = to
}

// Read implements io.Reader for oto.Player (float32 little-endian stereo).
func (m *Mixer) Read(p []byte) (int, error) {
	n := len(p) / bytesPerFrame
	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.scratch) < n {
		m.scratch = make([][2]float32, n)
	}
	buf := m.scratch[:n]
	m.renderLocked(buf)

	for i, f := range buf {
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame:], math.Float32bits(f[0]))
		binary.LittleEndian.PutUint32(p[i*bytesPerFrame+4:], math.Float32bits(f[1]))
	}
	return n * bytesPerFrame, nil
}

func clip(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
