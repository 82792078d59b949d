package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// PortTimeout bounds port enumeration (CoreMIDI can hang)
const PortTimeout = 3 * time.Second

var (
	ErrTimeout    = errors.New("midi port listing timed out")
	ErrNoPort     = errors.New("no matching midi port")
	ErrNoOutPorts = errors.New("no midi output ports")
)

// Ports is a snapshot of the available MIDI ports
type Ports struct {
	In  []drivers.In
	Out []drivers.Out
}

// InNames returns the input port names
func (p Ports) InNames() []string {
	out := make([]string, len(p.In))
	for i, port := range p.In {
		out[i] = port.String()
	}
	return out
}

// OutNames returns the output port names
func (p Ports) OutNames() []string {
	out := make([]string, len(p.Out))
	for i, port := range p.Out {
		out[i] = port.String()
	}
	return out
}

// ListPorts enumerates ports, giving up after timeout
func ListPorts(timeout time.Duration) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{In: gomidi.GetInPorts(), Out: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return Ports{}, ErrTimeout
	}
}

// matchPort returns the index of the first name containing want
// (case-insensitive), or -1
func matchPort(names []string, want string) int {
	want = strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}
	return -1
}

func findOutPort(name string) (drivers.Out, error) {
	ports, err := ListPorts(PortTimeout)
	if err != nil {
		return nil, err
	}
	if len(ports.Out) == 0 {
		return nil, ErrNoOutPorts
	}
	if name == "" {
		return ports.Out[0], nil
	}
	i := matchPort(ports.OutNames(), name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoPort, name)
	}
	return ports.Out[i], nil
}

func findInPort(name string) (drivers.In, error) {
	ports, err := ListPorts(PortTimeout)
	if err != nil {
		return nil, err
	}
	i := matchPort(ports.InNames(), name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoPort, name)
	}
	return ports.In[i], nil
}

// CloseDriver releases the MIDI driver; call once at exit
func CloseDriver() {
	gomidi.CloseDriver()
}
