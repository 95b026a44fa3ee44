// Package batch carries one device's next unit of wire work: an ordered
// set of MODBUS transactions plus the encoder that maps them to and
// from the serial wire.
package batch

import (
	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/transport"
)

// Encoder maps device-level requests to serial frames and serial frames
// back to device-level responses. Each device family provides one.
type Encoder[Req, Resp any] interface {
	// RequestToSerial builds the full RTU frame for a request.
	RequestToSerial(req Req) (transport.Message, bool)
	// SerialToResponse decodes a filtered serial message against the
	// request it answers. A missing or malformed answer must decode to
	// the device family's failure response, never to an error.
	SerialToResponse(msg transport.Message, req Req, id modbus.ID) Resp
	// FilterResponse screens raw serial traffic before decoding; see
	// DefaultFilter.
	FilterResponse(msg transport.Message) (transport.Message, bool)
}

// DefaultFilter is the response pre-filter shared by every encoder:
// Receive frames long enough to be an answer (at least 7 bytes) pass
// through, shorter Receive frames are coerced into NoResponse, and
// NoResponse itself passes. Anything else on the wire channel is
// dropped.
func DefaultFilter(msg transport.Message, log *zap.Logger) (transport.Message, bool) {
	switch m := msg.(type) {
	case transport.Receive:
		if len(m.Data) > 6 {
			return msg, true
		}
		log.Error("incomplete response frame", zap.Binary("frame", m.Data))
		return transport.NoResponse{}, true
	case transport.NoResponse:
		return msg, true
	default:
		return nil, false
	}
}

// Batch is a FIFO of pending transactions for one device with at most
// one transaction outstanding on the wire at a time.
type Batch[Req, Resp any] struct {
	ID       modbus.ID
	encoder  Encoder[Req, Resp]
	requests []Req
	current  *Req
	log      *zap.Logger
}

// New creates an empty batch for the given device.
func New[Req, Resp any](id modbus.ID, encoder Encoder[Req, Resp], log *zap.Logger) *Batch[Req, Resp] {
	return &Batch[Req, Resp]{
		ID:      id,
		encoder: encoder,
		log:     log,
	}
}

// Push appends a request to the batch.
func (b *Batch[Req, Resp]) Push(req Req) {
	b.requests = append(b.requests, req)
}

// Next yields the wire frame for the next transaction. It returns false
// while the current transaction is still awaiting its response or when
// no requests remain. Requests are consumed in push order.
func (b *Batch[Req, Resp]) Next() (transport.Message, bool) {
	if len(b.requests) == 0 || b.current != nil {
		return nil, false
	}
	req := b.requests[0]
	b.requests = b.requests[1:]
	b.current = &req
	return b.encoder.RequestToSerial(req)
}

// IsEmpty reports whether no work remains at all.
func (b *Batch[Req, Resp]) IsEmpty() bool {
	return len(b.requests) == 0 && b.current == nil
}

// IsComplete reports whether the current transaction has been answered
// and the next one may start.
func (b *Batch[Req, Resp]) IsComplete() bool {
	return b.current == nil
}

// HandleResponse offers a serial message to the outstanding
// transaction. It returns false when the message is filtered out or no
// transaction is outstanding; otherwise the transaction completes and
// the decoded device response is returned.
func (b *Batch[Req, Resp]) HandleResponse(msg transport.Message) (Resp, bool) {
	var zero Resp
	if b.current == nil {
		b.log.Error("response with no outstanding request", zap.Stringer("device", b.ID))
		return zero, false
	}
	filtered, ok := b.encoder.FilterResponse(msg)
	if !ok {
		return zero, false
	}
	req := *b.current
	b.current = nil
	return b.encoder.SerialToResponse(filtered, req, b.ID), true
}
