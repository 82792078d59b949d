package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerPedal
)

// PedalEvent is sent when a foot switch or pad is pressed
type PedalEvent struct {
	Source   string // port name
	Note     uint8  // note or CC number that fired
	Velocity uint8
}

// Controller is the interface for MIDI input devices
type Controller interface {
	ID() string
	Type() ControllerType

	// Presses from the controller
	Events() <-chan PedalEvent

	// Lifecycle
	Close() error
}
