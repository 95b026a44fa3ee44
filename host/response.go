package host

import (
	"fmt"

	"github.com/pythcoiner/modbus-router/modbus"
)

// DriveState is the coarse running state of a drive.
type DriveState uint8

const (
	// DriveNone marks a drive whose status has never been read.
	DriveNone DriveState = iota
	// DriveStopped means the drive reported a zero reference.
	DriveStopped
	// DriveRunning means the drive reported a non-zero reference.
	DriveRunning
)

// DriveStatus is the last status read from a drive. Reference is only
// meaningful when State is DriveRunning; negative means reverse.
type DriveStatus struct {
	State     DriveState
	Reference int16
}

// String returns a string representation of the status.
func (s DriveStatus) String() string {
	switch s.State {
	case DriveStopped:
		return "Stop"
	case DriveRunning:
		return fmt.Sprintf("Run(%d)", s.Reference)
	default:
		return "None"
	}
}

// Response is a frame headed back to the controller. Encode returns the
// wire bytes, or false for responses the protocol cannot express yet.
type Response interface {
	Encode() ([]byte, bool)
}

// StatusResponse reports a drive's status to the controller.
type StatusResponse struct {
	Source modbus.ID
	Status DriveStatus
}

// Encode serializes the response as
// [id, 0x02, 0x03, sign, refMSB, refLSB, crcH, crcL]. Only a running
// status has a frame encoding today.
//
// TODO: encode DriveStopped once the controller protocol defines a stop
// status frame.
func (r StatusResponse) Encode() ([]byte, bool) {
	if r.Status.State != DriveRunning {
		return nil, false
	}
	magnitude := magnitude15(r.Status.Reference)
	frame := []byte{
		r.Source.Byte(),
		frameVfdResponse,
		functionStatus,
		0,
		byte(magnitude >> 8),
		byte(magnitude),
		0,
		0,
	}
	if r.Status.Reference < 0 {
		frame[3] = 1
	}
	crc := modbus.CRC16(frame[:6])
	frame[6] = byte(crc >> 8)
	frame[7] = byte(crc)
	return frame, true
}

// magnitude15 returns the absolute value of v clamped to 15 bits. The
// one value without an int16 magnitude, -32768, collapses to 0.
func magnitude15(v int16) uint16 {
	m := int32(v)
	if m < 0 {
		m = -m
	}
	return uint16(m) & 0x7FFF
}
