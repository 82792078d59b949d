package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of pedal controllers on input
// ports whose name contains match
type DeviceManager struct {
	match       string
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration

	listIn  func() ([]string, error)
	connect func(name string) (Controller, error)
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(match string) *DeviceManager {
	return &DeviceManager{
		match:       strings.ToLower(match),
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		listIn:      listInNames,
		connect:     connectPedal,
	}
}

func listInNames() ([]string, error) {
	ports, err := ListPorts(PortTimeout)
	if err != nil {
		return nil, err
	}
	return ports.InNames(), nil
}

func connectPedal(name string) (Controller, error) {
	in, err := findInPort(name)
	if err != nil {
		return nil, err
	}
	return NewPedalController(name, in)
}

// Events returns a channel of device connect/disconnect events. It is
// closed when Run returns.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	names, err := dm.listIn()
	if err != nil {
		// CoreMIDI is hung - skip this scan
		log.Warn().Err(err).Msg("midi scan skipped")
		return
	}

	// Build map of what we see now
	seenIDs := make(map[string]bool)

	for _, name := range names {
		if dm.match == "" || !strings.Contains(strings.ToLower(name), dm.match) {
			continue
		}
		seenIDs[name] = true

		dm.mu.RLock()
		_, exists := dm.controllers[name]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		c, err := dm.connect(name)
		if err != nil {
			log.Warn().Err(err).Str("port", name).Msg("pedal connect failed")
			continue
		}

		dm.mu.Lock()
		dm.controllers[name] = c
		dm.mu.Unlock()
		log.Info().Str("port", name).Msg("pedal connected")

		dm.events <- DeviceEvent{
			Type:       DeviceConnected,
			Controller: c,
			ID:         name,
		}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		log.Info().Str("port", id).Msg("pedal disconnected")
		dm.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}
