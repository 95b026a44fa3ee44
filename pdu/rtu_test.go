package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pythcoiner/modbus-router/modbus"
)

func TestAssembleRTU(t *testing.T) {
	frame := AssembleRTU(0x01, ReadHoldingRegisters(0x0000, 1))
	// Canonical frame with its canonical CRC, low byte first.
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0x84, 0x0A}, frame)
}

func TestAssembleRTUWrite(t *testing.T) {
	frame := AssembleRTU(20, WriteSingleRegister(0x2000, 0x0001))
	require.Len(t, frame, 8)
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x00, 0x00, 0x01}, frame[:6])
	crc := modbus.CRC16(frame[:6])
	assert.Equal(t, byte(crc), frame[6])
	assert.Equal(t, byte(crc>>8), frame[7])
}

func TestParseRTURoundTrip(t *testing.T) {
	original := WriteSingleRegister(0x6401, 0)
	frame := AssembleRTU(40, original)

	slave, p, err := ParseRTU(frame)
	require.NoError(t, err)
	assert.Equal(t, byte(40), slave)
	assert.Equal(t, original.FunctionCode, p.FunctionCode)
	assert.Equal(t, original.Data, p.Data)
}

func TestParseRTUCRCMismatch(t *testing.T) {
	frame := AssembleRTU(40, WriteSingleRegister(0x6401, 0))
	frame[3] ^= 0xFF
	_, _, err := ParseRTU(frame)
	assert.Error(t, err)
}

func TestParseRTUTooShort(t *testing.T) {
	_, _, err := ParseRTU([]byte{0x01, 0x03, 0x84})
	assert.Error(t, err)
}
