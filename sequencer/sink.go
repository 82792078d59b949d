package sequencer

import "context"

// Sink plays voices at precise times on its own clock.
//
// Schedule must not block: it queues the voice and returns. Times in the
// past start immediately.
type Sink interface {
	// Now returns the sink clock in seconds.
	Now() float64
	Schedule(at float64, voice Voice, loudness float64) error
	// SetVolume sets the master gain, 0-1.
	SetVolume(level float64)
	// Resume wakes a suspended output.
	Resume() error
	Close() error
}

// Acquirer opens an output device and prepares its voices.
// It returns a *ResourceError when the device is unavailable.
type Acquirer func(ctx context.Context) (Sink, error)
