package pdu

import (
	"fmt"

	"github.com/pythcoiner/modbus-router/modbus"
)

// rtuOverhead is the slave ID byte plus the two CRC bytes.
const rtuOverhead = 3

// AssembleRTU wraps a PDU into a MODBUS RTU frame: slave ID, PDU bytes,
// CRC-16 low byte first.
func AssembleRTU(slave byte, p *PDU) []byte {
	pduBytes := p.Bytes()
	frame := make([]byte, 0, len(pduBytes)+rtuOverhead)
	frame = append(frame, slave)
	frame = append(frame, pduBytes...)
	crc := modbus.CRC16(frame)
	frame = append(frame, byte(crc), byte(crc>>8))
	return frame
}

// ParseRTU validates an RTU frame's length and CRC and splits it into
// the slave ID and the contained PDU.
func ParseRTU(frame []byte) (slave byte, p *PDU, err error) {
	if len(frame) < rtuOverhead+1 {
		return 0, nil, fmt.Errorf("RTU frame too short: %d bytes", len(frame))
	}
	received := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	calculated := modbus.CRC16(frame[:len(frame)-2])
	if received != calculated {
		return 0, nil, fmt.Errorf("RTU CRC mismatch: expected %04X, got %04X", calculated, received)
	}
	p, err = Parse(frame[1 : len(frame)-2])
	if err != nil {
		return 0, nil, err
	}
	return frame[0], p, nil
}
