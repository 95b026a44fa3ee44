package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusResponseEncodeRunning(t *testing.T) {
	tests := []struct {
		name      string
		reference int16
		sign      byte
		msb       byte
		lsb       byte
	}{
		{"forward", 3000, 0, 0x0B, 0xB8},
		{"reverse", -3000, 1, 0x0B, 0xB8},
		{"max", 32767, 0, 0x7F, 0xFF},
		{"min plus one", -32767, 1, 0x7F, 0xFF},
		{"minus one", -1, 1, 0x00, 0x01},
		// -32768 has no int16 magnitude; it collapses to a reverse zero.
		{"min", -32768, 1, 0x00, 0x00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := StatusResponse{
				Source: 20,
				Status: DriveStatus{State: DriveRunning, Reference: tt.reference},
			}
			frame, ok := response.Encode()
			require.True(t, ok)
			require.Len(t, frame, FrameLength)

			assert.Equal(t, byte(20), frame[0])
			assert.Equal(t, byte(0x02), frame[1])
			assert.Equal(t, byte(0x03), frame[2])
			assert.Equal(t, tt.sign, frame[3])
			assert.Equal(t, tt.msb, frame[4])
			assert.Equal(t, tt.lsb, frame[5])
			assert.True(t, CheckCRC(frame))
		})
	}
}

func TestStatusResponsePositiveDataBytes(t *testing.T) {
	// A positive running status frame carries [0, ref>>8, ref&0xff] in
	// its data bytes.
	for _, reference := range []int16{0x0001, 0x0100, 0x7FFF} {
		response := StatusResponse{
			Source: 9,
			Status: DriveStatus{State: DriveRunning, Reference: reference},
		}
		frame, ok := response.Encode()
		require.True(t, ok)
		assert.Equal(t, []byte{0, byte(reference >> 8), byte(reference)}, frame[3:6])
	}
}

func TestStatusResponseNotEncodable(t *testing.T) {
	_, ok := StatusResponse{Source: 20, Status: DriveStatus{State: DriveStopped}}.Encode()
	assert.False(t, ok)

	_, ok = StatusResponse{Source: 20, Status: DriveStatus{State: DriveNone}}.Encode()
	assert.False(t, ok)
}

func TestStatusResponseDecodesAsResponseFrame(t *testing.T) {
	// The frame must be rejected by the request decoder: the system
	// only ever emits it, never consumes it.
	frame, ok := StatusResponse{
		Source: 20,
		Status: DriveStatus{State: DriveRunning, Reference: 100},
	}.Encode()
	require.True(t, ok)

	_, err := DecodeRequest(frame)
	assert.ErrorIs(t, err, ErrFrameType)
}

func TestDriveStatusString(t *testing.T) {
	assert.Equal(t, "None", DriveStatus{}.String())
	assert.Equal(t, "Stop", DriveStatus{State: DriveStopped}.String())
	assert.Equal(t, "Run(-42)", DriveStatus{State: DriveRunning, Reference: -42}.String())
}

func TestMagnitude15(t *testing.T) {
	assert.Equal(t, uint16(0), magnitude15(0))
	assert.Equal(t, uint16(3000), magnitude15(3000))
	assert.Equal(t, uint16(3000), magnitude15(-3000))
	assert.Equal(t, uint16(32767), magnitude15(-32767))
	assert.Equal(t, uint16(0), magnitude15(-32768))
}
