package joystick

import (
	"fmt"
	"slices"

	"github.com/pythcoiner/modbus-router/modbus"
)

// Type distinguishes the two joystick models on the buses.
type Type uint8

const (
	// Standard is the 4-axis joystick.
	Standard Type = iota
	// WithThumb adds a fifth axis for the thumb wheel.
	WithThumb
)

// registerCount is how many status registers the model exposes.
func (t Type) registerCount() uint16 {
	if t == WithThumb {
		return 5
	}
	return 4
}

// Request is the only transaction a joystick understands: read its
// status registers.
type Request struct {
	Device modbus.ID
	Type   Type
}

// StatusRequest builds a status read for the given joystick.
func StatusRequest(id modbus.ID, t Type) Request {
	return Request{Device: id, Type: t}
}

// ResponseKind discriminates the outcomes of a joystick transaction.
type ResponseKind uint8

const (
	// RespFail marks a read that got no answer or a wrong one.
	RespFail ResponseKind = iota
	// RespStatus carries a decoded status read.
	RespStatus
)

// Response is the outcome of one joystick transaction.
type Response struct {
	Kind    ResponseKind
	Request Request
	Status  Status
}

// Status is a decoded axis snapshot. Axes is nil until the first
// successful read; its length matches the joystick type afterwards.
type Status struct {
	Type Type
	Axes []uint16
}

// Equal reports whether two snapshots carry the same axis values.
func (s Status) Equal(other Status) bool {
	return s.Type == other.Type && slices.Equal(s.Axes, other.Axes)
}

// String returns a string representation of the snapshot.
func (s Status) String() string {
	if s.Axes == nil {
		return "None"
	}
	return fmt.Sprintf("%v", s.Axes)
}
