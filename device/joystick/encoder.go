package joystick

import (
	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/batch"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/pdu"
	"github.com/pythcoiner/modbus-router/transport"
)

// statusAddress is where every joystick model maps its axis registers.
const statusAddress uint16 = 0x4001

// Encoder maps joystick status reads to MODBUS RTU frames and back.
type Encoder struct {
	joystickType Type
	log          *zap.Logger
}

// NewEncoder creates an encoder for one joystick model.
func NewEncoder(joystickType Type, log *zap.Logger) *Encoder {
	return &Encoder{
		joystickType: joystickType,
		log:          log,
	}
}

// RequestToSerial builds the function 0x03 read for the status block.
func (e *Encoder) RequestToSerial(req Request) (transport.Message, bool) {
	p := pdu.ReadHoldingRegisters(statusAddress, req.Type.registerCount())
	return transport.Send{Data: pdu.AssembleRTU(req.Device.Byte(), p)}, true
}

// SerialToResponse decodes the wire answer to a status read; anything
// that does not parse into the model's register count is a Fail.
func (e *Encoder) SerialToResponse(msg transport.Message, req Request, id modbus.ID) Response {
	switch m := msg.(type) {
	case transport.Receive:
		if len(m.Data) > 0 && m.Data[0] == id.Byte() {
			if status, ok := e.decode(m.Data); ok {
				return Response{Kind: RespStatus, Status: status}
			}
		}
		return Response{Kind: RespFail, Request: req}
	case transport.NoResponse:
		return Response{Kind: RespFail, Request: req}
	default:
		panic("unfiltered serial message reached the joystick encoder")
	}
}

// FilterResponse applies the shared pre-filter.
func (e *Encoder) FilterResponse(msg transport.Message) (transport.Message, bool) {
	return batch.DefaultFilter(msg, e.log)
}

func (e *Encoder) decode(data []byte) (Status, bool) {
	_, p, err := pdu.ParseRTU(data)
	if err != nil {
		e.log.Debug("malformed joystick frame", zap.Error(err))
		return Status{}, false
	}
	registers, err := p.HoldingRegisters()
	if err != nil || len(registers) != int(e.joystickType.registerCount()) {
		return Status{}, false
	}
	return Status{Type: e.joystickType, Axes: registers}, true
}
