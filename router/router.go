// Package router is the host boundary: it re-synchronizes the byte
// stream coming from the controller into 8-byte frames, fans decoded
// requests out to the device actors, and serializes their responses
// back onto the output stream.
package router

import (
	"bufio"
	"io"

	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/host"
	"github.com/pythcoiner/modbus-router/modbus"
)

// Connector is a device's endpoint pair to the router: requests flow
// out to the device, responses flow back on the shared return channel.
type Connector struct {
	Requests  <-chan host.Request
	Responses chan<- host.Response
}

const requestDepth = 16

// Router owns the host input and output streams and the per-device
// request channels. The routing table is populated through Connector
// during wiring and never changes once Run starts.
type Router struct {
	input     <-chan byte
	buffer    []byte
	output    io.Writer
	responses chan host.Response
	senders   map[modbus.ID]chan host.Request
	log       *zap.Logger
}

// New creates a router reading host frames from input and writing
// responses to output. A dedicated goroutine performs the blocking
// reads and feeds the router one byte at a time through a capacity-1
// channel, so the router loop itself never blocks on input.
func New(input io.Reader, output io.Writer, log *zap.Logger) *Router {
	bytes := make(chan byte, 1)
	go readLoop(input, bytes)
	return &Router{
		input:     bytes,
		output:    output,
		responses: make(chan host.Response, requestDepth),
		senders:   make(map[modbus.ID]chan host.Request),
		log:       log,
	}
}

func readLoop(input io.Reader, bytes chan<- byte) {
	reader := bufio.NewReader(input)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return
		}
		bytes <- b
	}
}

// Connector hands out the endpoint pair for a device. Only the first
// call per ID succeeds.
func (r *Router) Connector(id modbus.ID) (*Connector, bool) {
	if _, taken := r.senders[id]; taken {
		return nil, false
	}
	requests := make(chan host.Request, requestDepth)
	r.senders[id] = requests
	return &Connector{
		Requests:  requests,
		Responses: r.responses,
	}, true
}

// DeviceCount returns the number of registered devices.
func (r *Router) DeviceCount() int {
	return len(r.senders)
}

// DeviceIDs returns the registered device IDs; a broadcast expands to
// exactly this set.
func (r *Router) DeviceIDs() []modbus.ID {
	ids := make([]modbus.ID, 0, len(r.senders))
	for id := range r.senders {
		ids = append(ids, id)
	}
	return ids
}

// Run pumps host bytes into requests and device responses into host
// frames until the process exits.
func (r *Router) Run() {
	r.log.Info("router started", zap.Int("devices", len(r.senders)))
	for {
		select {
		case b := <-r.input:
			r.buffer = append(r.buffer, b)
			for {
				frame, ok := r.nextFrame()
				if !ok {
					break
				}
				r.dispatch(frame)
			}
		case response := <-r.responses:
			r.writeResponse(response)
		}
	}
}

// nextFrame scans the rolling buffer for an 8-byte window whose CRC
// validates. Bytes in front of a valid window are garbage from stream
// slippage and are dropped one at a time.
func (r *Router) nextFrame() ([]byte, bool) {
	for len(r.buffer) >= host.FrameLength {
		if host.CheckCRC(r.buffer[:host.FrameLength]) {
			frame := append([]byte(nil), r.buffer[:host.FrameLength]...)
			r.buffer = r.buffer[host.FrameLength:]
			r.log.Debug("frame extracted", zap.Binary("frame", frame))
			return frame, true
		}
		r.buffer = r.buffer[1:]
	}
	return nil, false
}

// dispatch decodes one frame and routes the request: unicast to its
// device, broadcast to every device, reserved IDs dropped silently.
func (r *Router) dispatch(frame []byte) {
	request, err := host.DecodeRequest(frame)
	if err != nil {
		r.log.Error("dropping host frame", zap.Binary("frame", frame), zap.Error(err))
		return
	}
	id := request.ID()
	switch {
	case id.IsBroadcast():
		for deviceID := range r.senders {
			r.transmit(request.WithID(deviceID))
		}
	case id.IsReserved():
		// Dropped silently.
	default:
		r.transmit(request)
	}
}

// transmit forwards a request to its device's inbox.
func (r *Router) transmit(request host.Request) {
	sender, ok := r.senders[request.ID()]
	if !ok {
		r.log.Error("no device for request", zap.Stringer("device", request.ID()))
		return
	}
	select {
	case sender <- request:
	default:
		r.log.Error("device inbox full, dropping request", zap.Stringer("device", request.ID()))
	}
}

// writeResponse serializes one response to the host output. Responses
// without a wire encoding are discarded.
func (r *Router) writeResponse(response host.Response) {
	raw, ok := response.Encode()
	if !ok {
		return
	}
	if _, err := r.output.Write(raw); err != nil {
		r.log.Error("cannot write host response", zap.Error(err))
	}
}
