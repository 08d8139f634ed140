package midi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	"go.uber.org/zap"
)

var (
	ErrPortNotFound = errors.New("midi port not found")
	ErrScanTimeout  = errors.New("midi port scan timed out")
)

// DeviceEvent is emitted when the watched ports connect/disconnect
type DeviceEvent struct {
	Type   DeviceEventType
	Name   string
	Input  *Input                     // set on InputConnected
	Sender func(gomidi.Message) error // set on OutputConnected
}

type DeviceEventType int

const (
	InputConnected DeviceEventType = iota
	InputDisconnected
	OutputConnected
	OutputDisconnected
)

func (t DeviceEventType) String() string {
	switch t {
	case InputConnected:
		return "input connected"
	case InputDisconnected:
		return "input disconnected"
	case OutputConnected:
		return "output connected"
	case OutputDisconnected:
		return "output disconnected"
	}
	return "unknown"
}

// Ports is a snapshot of the available port names
type Ports struct {
	Inputs  []string
	Outputs []string
}

// scanTimeout bounds a port listing; CoreMIDI can hang
const scanTimeout = 3 * time.Second

// DeviceManager watches one input and one output port by name and handles
// hot-plug: the ports are (re)opened when they appear and reported when they
// vanish. An empty name selects the first port that is not a "Through" port.
type DeviceManager struct {
	inWant  string
	outWant string

	mu      sync.Mutex
	input   *Input
	inName  string
	outName string

	events   chan DeviceEvent
	pollRate time.Duration
	log      *zap.Logger
}

// NewDeviceManager creates a device manager for the given port names
func NewDeviceManager(inName, outName string, log *zap.Logger) *DeviceManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeviceManager{
		inWant:   inName,
		outWant:  outName,
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
		log:      log,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Connected returns the names of the open ports ("" if none)
func (dm *DeviceManager) Connected() (in, out string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.inName, dm.outName
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

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

// ListPorts returns the current port names
func ListPorts() (Ports, error) {
	ins, outs, err := listDriverPorts()
	if err != nil {
		return Ports{}, err
	}
	var p Ports
	for _, in := range ins {
		p.Inputs = append(p.Inputs, in.String())
	}
	for _, out := range outs {
		p.Outputs = append(p.Outputs, out.String())
	}
	return p, nil
}

// OpenOutput finds an output port by name and returns a sender for it
func OpenOutput(name string) (string, func(gomidi.Message) error, error) {
	_, outs, err := listDriverPorts()
	if err != nil {
		return "", nil, err
	}
	port := findPort(outs, name)
	if port == nil {
		return "", nil, fmt.Errorf("output %q: %w", name, ErrPortNotFound)
	}
	send, err := gomidi.SendTo(port)
	if err != nil {
		return "", nil, fmt.Errorf("open output %s: %w", port.String(), err)
	}
	return port.String(), send, nil
}

func listDriverPorts() ([]drivers.In, []drivers.Out, error) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, nil
	case <-time.After(scanTimeout):
		return nil, nil, ErrScanTimeout
	}
}

func (dm *DeviceManager) scan() {
	inPorts, outPorts, err := listDriverPorts()
	if err != nil {
		// User needs to run: sudo killall coreaudiod midiserver
		dm.log.Warn("port scan", zap.Error(err))
		return
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	// Input
	if dm.input != nil && findPort(inPorts, dm.inName) == nil {
		dm.input.Close()
		dm.input = nil
		dm.emit(DeviceEvent{Type: InputDisconnected, Name: dm.inName})
		dm.inName = ""
	}
	if dm.input == nil {
		if port := findPort(inPorts, dm.inWant); port != nil {
			in, err := OpenInput(port.String(), port)
			if err != nil {
				dm.log.Warn("open input", zap.String("port", port.String()), zap.Error(err))
			} else {
				dm.input = in
				dm.inName = port.String()
				dm.emit(DeviceEvent{Type: InputConnected, Name: dm.inName, Input: in})
			}
		}
	}

	// Output
	if dm.outName != "" && findPort(outPorts, dm.outName) == nil {
		dm.emit(DeviceEvent{Type: OutputDisconnected, Name: dm.outName})
		dm.outName = ""
	}
	if dm.outName == "" {
		if port := findPort(outPorts, dm.outWant); port != nil {
			send, err := gomidi.SendTo(port)
			if err != nil {
				dm.log.Warn("open output", zap.String("port", port.String()), zap.Error(err))
			} else {
				dm.outName = port.String()
				dm.emit(DeviceEvent{Type: OutputConnected, Name: dm.outName, Sender: send})
			}
		}
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	dm.log.Info("device", zap.Stringer("event", ev.Type), zap.String("port", ev.Name))
	select {
	case dm.events <- ev:
	default:
		dm.log.Warn("device event dropped", zap.Stringer("event", ev.Type))
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.input != nil {
		dm.input.Close()
		dm.input = nil
	}
	dm.inName = ""
	dm.outName = ""
}

func findPort[P interface{ String() string }](ports []P, want string) P {
	var zero P
	for _, p := range ports {
		if matchPort(p.String(), want) {
			return p
		}
	}
	return zero
}

func matchPort(name, want string) bool {
	lower := strings.ToLower(name)
	if want == "" {
		return !strings.Contains(lower, "through")
	}
	if name == want {
		return true
	}
	return strings.Contains(lower, strings.ToLower(want))
}
