// Package host implements the framing spoken with the controller over
// the process's standard input and output.
//
// All frames are 8 bytes long:
//
//	[MODBUS_ID, TYPE, FUNCTION_CODE, DATA1, DATA2, DATA3, CRC, CRC]
//
// The payload is 6 bytes; a MODBUS CRC-16 over it closes the frame,
// high byte first. Pipes do not corrupt data, but they can slip, and
// the CRC lets the router re-align on the stream.
//
//   - MODBUS_ID: 0 broadcast, 1-247 device, 248-255 reserved.
//   - TYPE: 1 VFD request, 2 VFD response, 3 joystick request,
//     4 joystick response.
//   - VFD FUNCTION_CODE: 1 Run (DATA1 = sign, DATA2/DATA3 = reference
//     MSB/LSB, magnitude of an int16), 2 Stop, 3 Status (DATA1..3 = 0).
//   - Joystick FUNCTION_CODE (reserved, not decoded yet): 1 X position,
//     2 Y position, 3 button state, 4 X thumb position, 5 Y thumb
//     position; positions carry sign + magnitude like Run.
//
// Only TYPE=1 frames are accepted today; the system emits only TYPE=2.
package host

import (
	"github.com/pythcoiner/modbus-router/modbus"
)

// FrameLength is the fixed size of every host frame.
const FrameLength = 8

// Frame type bytes.
const (
	frameVfdRequest       = 0x01
	frameVfdResponse      = 0x02
	frameJoystickRequest  = 0x03
	frameJoystickResponse = 0x04
)

// VFD function code bytes.
const (
	functionRun    = 0x01
	functionStop   = 0x02
	functionStatus = 0x03
)

// Request is a decoded controller request. The concrete types are Run,
// Stop and Status.
type Request interface {
	// ID returns the addressed device.
	ID() modbus.ID
	// WithID returns a copy of the request re-addressed to id; the
	// router uses it to fan a broadcast out to every device.
	WithID(id modbus.ID) Request
}

// Run commands a device to run at a signed reference; negative values
// mean reverse.
type Run struct {
	Target    modbus.ID
	Reference int16
}

// Stop commands a device to stop.
type Stop struct {
	Target modbus.ID
}

// Status queries a device's current status.
type Status struct {
	Target modbus.ID
}

func (r Run) ID() modbus.ID    { return r.Target }
func (r Stop) ID() modbus.ID   { return r.Target }
func (r Status) ID() modbus.ID { return r.Target }

func (r Run) WithID(id modbus.ID) Request    { return Run{Target: id, Reference: r.Reference} }
func (r Stop) WithID(id modbus.ID) Request   { return Stop{Target: id} }
func (r Status) WithID(id modbus.ID) Request { return Status{Target: id} }

// CheckCRC reports whether an 8-byte window carries a valid frame CRC
// (high byte in frame[6], low byte in frame[7]).
func CheckCRC(frame []byte) bool {
	if len(frame) != FrameLength {
		return false
	}
	crc := modbus.CRC16(frame[:FrameLength-2])
	return frame[6] == byte(crc>>8) && frame[7] == byte(crc)
}

// DecodeRequest decodes an 8-byte frame into a Request.
func DecodeRequest(frame []byte) (Request, error) {
	if len(frame) != FrameLength {
		return nil, ErrFrameLength
	}
	if !CheckCRC(frame) {
		return nil, ErrCRC
	}

	id := modbus.IDFromByte(frame[0])
	if id.IsReserved() {
		return nil, ErrModbusID
	}

	if frame[1] != frameVfdRequest {
		return nil, ErrFrameType
	}

	switch frame[2] {
	case functionRun:
		reference := uint16(frame[4])<<8 | uint16(frame[5])
		if reference > 0x7FFF {
			return nil, ErrRefValue
		}
		value := int16(reference)
		switch frame[3] {
		case 0:
		case 1:
			value = -value
		default:
			return nil, ErrRefSign
		}
		return Run{Target: id, Reference: value}, nil
	case functionStop:
		return Stop{Target: id}, nil
	case functionStatus:
		return Status{Target: id}, nil
	default:
		return nil, ErrFunctionType
	}
}
