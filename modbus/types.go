package modbus

import "fmt"

// ID represents a MODBUS slave/unit identifier.
//
// The value space is partitioned the way the MODBUS spec partitions it:
// 0 is the broadcast address, 1-247 address individual devices, and
// 248-255 are reserved. Reserved IDs are never used as routing keys;
// requests addressed to them are dropped.
type ID uint8

// Broadcast is the MODBUS broadcast address.
const Broadcast ID = 0

// maxDeviceID is the highest addressable device ID; everything above is reserved.
const maxDeviceID ID = 247

// IDFromByte converts a raw wire byte into an ID.
func IDFromByte(b byte) ID {
	return ID(b)
}

// IsBroadcast returns true for the broadcast address (0).
func (id ID) IsBroadcast() bool {
	return id == Broadcast
}

// IsDevice returns true if the ID addresses a single device (1-247).
func (id ID) IsDevice() bool {
	return id >= 1 && id <= maxDeviceID
}

// IsReserved returns true for the reserved range (248-255).
func (id ID) IsReserved() bool {
	return id > maxDeviceID
}

// Byte returns the wire representation of the ID. The whole reserved
// range collapses to 255.
func (id ID) Byte() byte {
	if id.IsReserved() {
		return 0xFF
	}
	return byte(id)
}

// String returns a string representation of the ID.
func (id ID) String() string {
	switch {
	case id.IsBroadcast():
		return "Broadcast"
	case id.IsReserved():
		return fmt.Sprintf("Reserved(%d)", uint8(id))
	default:
		return fmt.Sprintf("%d", uint8(id))
	}
}

// FunctionCode represents a MODBUS function code.
type FunctionCode uint8

const (
	FuncCodeReadHoldingRegisters FunctionCode = 0x03
	FuncCodeWriteSingleRegister  FunctionCode = 0x06
)

// IsException returns true if the function code represents an exception.
func (fc FunctionCode) IsException() bool {
	return fc&0x80 != 0
}

// FromException converts an exception function code to its normal equivalent.
func (fc FunctionCode) FromException() FunctionCode {
	return fc &^ 0x80
}

// String returns a string representation of the function code.
func (fc FunctionCode) String() string {
	if fc.IsException() {
		return fmt.Sprintf("Exception(%02x)", uint8(fc.FromException()))
	}
	switch fc {
	case FuncCodeReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FuncCodeWriteSingleRegister:
		return "WriteSingleRegister"
	default:
		return fmt.Sprintf("Unknown(%02x)", uint8(fc))
	}
}
