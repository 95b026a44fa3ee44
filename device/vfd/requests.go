package vfd

import (
	"fmt"

	"github.com/pythcoiner/modbus-router/host"
	"github.com/pythcoiner/modbus-router/modbus"
)

// Dir is the commanded rotation direction.
type Dir uint8

const (
	Forward Dir = iota
	Reverse
)

// value maps the direction to the vendor's command register value.
func (d Dir) value(c Commands) uint16 {
	if d == Forward {
		return c.FwValue
	}
	return c.RvValue
}

// RequestKind discriminates the transactions a drive understands.
type RequestKind uint8

const (
	// ReqCmd writes the direction command register.
	ReqCmd RequestKind = iota
	// ReqRef writes the speed reference register.
	ReqRef
	// ReqStop writes the stop value to the command register.
	ReqStop
	// ReqStatus reads the status register.
	ReqStatus
)

// Request is one drive-level transaction. Dir is meaningful for ReqCmd
// only, Reference for ReqRef only.
type Request struct {
	Kind      RequestKind
	Device    modbus.ID
	Dir       Dir
	Reference uint16
}

// CmdRequest builds a direction command write.
func CmdRequest(id modbus.ID, dir Dir) Request {
	return Request{Kind: ReqCmd, Device: id, Dir: dir}
}

// RefRequest builds a speed reference write.
func RefRequest(id modbus.ID, reference uint16) Request {
	return Request{Kind: ReqRef, Device: id, Reference: reference}
}

// StopRequest builds a stop command write.
func StopRequest(id modbus.ID) Request {
	return Request{Kind: ReqStop, Device: id}
}

// StatusRequest builds a status register read.
func StatusRequest(id modbus.ID) Request {
	return Request{Kind: ReqStatus, Device: id}
}

// String returns a string representation of the request.
func (r Request) String() string {
	switch r.Kind {
	case ReqCmd:
		if r.Dir == Forward {
			return fmt.Sprintf("Cmd(%s, Fw)", r.Device)
		}
		return fmt.Sprintf("Cmd(%s, Rv)", r.Device)
	case ReqRef:
		return fmt.Sprintf("Ref(%s, %d)", r.Device, r.Reference)
	case ReqStop:
		return fmt.Sprintf("Stop(%s)", r.Device)
	case ReqStatus:
		return fmt.Sprintf("Status(%s)", r.Device)
	default:
		return fmt.Sprintf("Unknown(%d)", r.Kind)
	}
}

// ResponseKind discriminates the outcomes of a drive transaction.
type ResponseKind uint8

const (
	// RespOK acknowledges a successful write.
	RespOK ResponseKind = iota
	// RespFail marks a transaction that got no answer or a wrong one.
	RespFail
	// RespStatus carries a decoded status read.
	RespStatus
)

// Response is the outcome of one drive transaction. Request echoes the
// originating transaction for RespOK and RespFail; Status is set for
// RespStatus.
type Response struct {
	Kind    ResponseKind
	Request Request
	Status  host.DriveStatus
}
