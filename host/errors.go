package host

import "errors"

// Decode failure taxonomy for the host framing. Frames failing any of
// these checks are logged and dropped; nothing is reported back to the
// controller.
var (
	ErrFrameLength    = errors.New("wrong frame length")
	ErrCRC            = errors.New("wrong crc")
	ErrFrameType      = errors.New("wrong frame type")
	ErrFunctionType   = errors.New("wrong function type")
	ErrRefValue       = errors.New("wrong reference value")
	ErrRefSign        = errors.New("wrong reference sign")
	ErrModbusID       = errors.New("wrong modbus id")
	ErrNotImplemented = errors.New("not implemented")
)
