// Package poller drives one physical serial bus: it polls each attached
// device in round-robin, pushes the device's transaction batch onto the
// wire, and routes decoded responses back to the owning device.
package poller

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/batch"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/transport"
)

// EventKind discriminates the messages a poller sends to a device.
type EventKind uint8

const (
	// EventPoll asks the device to produce its next batch.
	EventPoll EventKind = iota
	// EventResponse delivers a decoded response for one of the
	// device's transactions.
	EventResponse
)

// Event is a message from a poller to a device actor.
type Event[Resp any] struct {
	Kind     EventKind
	Response Resp
}

// Connector is a device's endpoint pair to its poller: batches flow in,
// poll ticks and responses flow out.
type Connector[Req, Resp any] struct {
	Batches chan<- *batch.Batch[Req, Resp]
	Events  <-chan Event[Resp]
}

// Serial is the endpoint surface of the serial port task the poller
// drives; *transport.Interface implements it.
type Serial interface {
	Run()
	Commands() chan<- transport.Message
	Events() <-chan transport.Message
}

// Timing holds the silence windows applied on the bus. A zero duration
// disables the corresponding wait.
type Timing struct {
	// FrameSilence is the quiet period after each completed frame
	// exchange.
	FrameSilence time.Duration
	// DeviceSilence is the quiet period between two devices.
	DeviceSilence time.Duration
	// Timeout is the serial response timeout; after it the serial task
	// reports NoResponse.
	Timeout time.Duration
}

// Poller schedules one serial bus across its devices.
type Poller[Req, Resp any] struct {
	port    string
	serial  Serial
	batches chan *batch.Batch[Req, Resp]
	events  map[modbus.ID]chan Event[Resp]
	order   []modbus.ID
	timing  Timing
	log     *zap.Logger
}

const eventDepth = 16

// New creates a poller for the named port on top of the given serial
// task. Devices attach through Connector before Start.
func New[Req, Resp any](port string, serial Serial, timing Timing, log *zap.Logger) *Poller[Req, Resp] {
	return &Poller[Req, Resp]{
		port:    port,
		serial:  serial,
		batches: make(chan *batch.Batch[Req, Resp], 1),
		events:  make(map[modbus.ID]chan Event[Resp]),
		timing:  timing,
		log:     log,
	}
}

// PortName returns the serial port this poller owns.
func (p *Poller[Req, Resp]) PortName() string {
	return p.port
}

// DeviceCount returns the number of attached devices.
func (p *Poller[Req, Resp]) DeviceCount() int {
	return len(p.events)
}

// DeviceIDs returns the attached device IDs in attachment order.
func (p *Poller[Req, Resp]) DeviceIDs() []modbus.ID {
	ids := make([]modbus.ID, len(p.order))
	copy(ids, p.order)
	return ids
}

// Connector hands out the endpoint pair for a device. Only the first
// call per ID succeeds; the device owns that endpoint for good.
func (p *Poller[Req, Resp]) Connector(id modbus.ID) (*Connector[Req, Resp], bool) {
	if _, taken := p.events[id]; taken {
		return nil, false
	}
	events := make(chan Event[Resp], eventDepth)
	p.events[id] = events
	p.order = append(p.order, id)
	return &Connector[Req, Resp]{
		Batches: p.batches,
		Events:  events,
	}, true
}

// Start launches the poller loop on its own goroutine.
func (p *Poller[Req, Resp]) Start() {
	go p.Run()
}

// Run connects the serial port and polls forever. It returns only if
// the serial interface is missing or the port cannot be opened; that
// bus is then dead for the rest of the process lifetime while the other
// pollers keep running.
func (p *Poller[Req, Resp]) Run() {
	p.log.Info("poller started",
		zap.String("port", p.port), zap.Int("devices", len(p.order)))

	serial := p.serial
	if serial == nil {
		p.log.Error("serial interface missing", zap.String("port", p.port))
		return
	}
	p.serial = nil
	go serial.Run()

	commands := serial.Commands()
	events := serial.Events()

	if p.timing.Timeout > 0 {
		p.log.Info("set serial timeout",
			zap.String("port", p.port), zap.Duration("timeout", p.timing.Timeout))
		commands <- transport.SetTimeout{Timeout: p.timing.Timeout}
	}
	commands <- transport.Connect{}

	for {
		msg := <-events
		if connected, ok := msg.(transport.Connected); ok {
			if !connected.OK {
				p.log.Error("cannot connect serial port", zap.String("port", p.port))
				return
			}
			break
		}
	}
	p.log.Info("port connected", zap.String("port", p.port))
	commands <- transport.SetMode{Mode: transport.ModeMasterStream}

	p.log.Info("polling", zap.String("port", p.port), zap.Int("devices", len(p.order)))
	for {
		for _, id := range p.order {
			p.pollDevice(id, commands, events)
			runtime.Gosched()
		}
	}
}

// pollDevice runs one full poll cycle for a single device: request a
// batch, then pump it transaction by transaction over the wire.
func (p *Poller[Req, Resp]) pollDevice(id modbus.ID, commands chan<- transport.Message, events <-chan transport.Message) {
	p.log.Debug("polling device", zap.Stringer("device", id))
	p.sendToDevice(id, Event[Resp]{Kind: EventPoll})

	b := <-p.batches

	for !b.IsEmpty() {
		frame, ok := b.Next()
		if !ok {
			// Defensive: nothing sendable although work remains.
			if p.timing.DeviceSilence > 0 {
				time.Sleep(p.timing.DeviceSilence)
			}
			break
		}
		commands <- frame
		for !b.IsComplete() {
			response, ok := b.HandleResponse(<-events)
			if !ok {
				continue
			}
			p.sendToDevice(b.ID, Event[Resp]{Kind: EventResponse, Response: response})
			if p.timing.FrameSilence > 0 {
				time.Sleep(p.timing.FrameSilence)
			}
		}
	}
}

// sendToDevice delivers an event to a device's inbox.
func (p *Poller[Req, Resp]) sendToDevice(id modbus.ID, event Event[Resp]) {
	events, ok := p.events[id]
	if !ok {
		p.log.Error("no inbox for device", zap.Stringer("device", id))
		return
	}
	events <- event
}
