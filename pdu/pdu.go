// Package pdu builds and parses the MODBUS protocol data units and RTU
// frames exchanged with the field devices. Only the two function codes
// the devices speak are implemented: ReadHoldingRegisters (0x03) and
// WriteSingleRegister (0x06).
package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/pythcoiner/modbus-router/modbus"
)

// PDU represents a MODBUS Protocol Data Unit.
type PDU struct {
	FunctionCode modbus.FunctionCode
	Data         []byte
}

// New creates a new PDU with the given function code and data.
func New(functionCode modbus.FunctionCode, data []byte) *PDU {
	return &PDU{
		FunctionCode: functionCode,
		Data:         data,
	}
}

// Bytes returns the PDU as a byte slice.
func (p *PDU) Bytes() []byte {
	result := make([]byte, 1+len(p.Data))
	result[0] = byte(p.FunctionCode)
	copy(result[1:], p.Data)
	return result
}

// IsException returns true if this is an exception response PDU.
func (p *PDU) IsException() bool {
	return p.FunctionCode.IsException()
}

// Parse parses a byte slice into a PDU.
func Parse(data []byte) (*PDU, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("PDU too short: need at least 1 byte")
	}
	pduData := make([]byte, len(data)-1)
	copy(pduData, data[1:])
	return &PDU{
		FunctionCode: modbus.FunctionCode(data[0]),
		Data:         pduData,
	}, nil
}

// ReadHoldingRegisters builds a function 0x03 request PDU.
func ReadHoldingRegisters(address, quantity uint16) *PDU {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], quantity)
	return New(modbus.FuncCodeReadHoldingRegisters, data)
}

// WriteSingleRegister builds a function 0x06 request PDU.
func WriteSingleRegister(address, value uint16) *PDU {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:], address)
	binary.BigEndian.PutUint16(data[2:], value)
	return New(modbus.FuncCodeWriteSingleRegister, data)
}

// HoldingRegisters decodes this PDU as a function 0x03 response and
// returns the register values.
func (p *PDU) HoldingRegisters() ([]uint16, error) {
	if p.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
		return nil, fmt.Errorf("not a ReadHoldingRegisters response: %s", p.FunctionCode)
	}
	if len(p.Data) < 1 {
		return nil, fmt.Errorf("ReadHoldingRegisters response has no byte count")
	}
	count := int(p.Data[0])
	if count%2 != 0 || len(p.Data) < 1+count {
		return nil, fmt.Errorf("ReadHoldingRegisters response truncated: byte count %d, payload %d",
			count, len(p.Data)-1)
	}
	return DecodeUint16Slice(p.Data[1 : 1+count])
}

// WrittenRegister decodes this PDU as a function 0x06 echo and returns
// the echoed register address and value.
func (p *PDU) WrittenRegister() (address, value uint16, err error) {
	if p.FunctionCode != modbus.FuncCodeWriteSingleRegister {
		return 0, 0, fmt.Errorf("not a WriteSingleRegister response: %s", p.FunctionCode)
	}
	if len(p.Data) < 4 {
		return 0, 0, fmt.Errorf("WriteSingleRegister response too short: %d bytes", len(p.Data))
	}
	return binary.BigEndian.Uint16(p.Data[0:]), binary.BigEndian.Uint16(p.Data[2:]), nil
}

// EncodeUint16 encodes a uint16 value in big-endian format.
func EncodeUint16(value uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, value)
	return buf
}

// DecodeUint16 decodes a big-endian uint16 value.
func DecodeUint16(data []byte) (uint16, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("insufficient data for uint16: need 2 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint16(data), nil
}

// DecodeUint16Slice decodes a slice of big-endian uint16 values.
func DecodeUint16Slice(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("invalid data length for uint16 slice: must be even, got %d", len(data))
	}
	values := make([]uint16, len(data)/2)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return values, nil
}
