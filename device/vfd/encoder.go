package vfd

import (
	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/batch"
	"github.com/pythcoiner/modbus-router/host"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/pdu"
	"github.com/pythcoiner/modbus-router/transport"
)

// Commands is a vendor's register map: where commands, references and
// status live, and which values the command register takes.
type Commands struct {
	CmdAddress    uint16
	RefAddress    uint16
	StatusAddress uint16
	FwValue       uint16
	RvValue       uint16
	StopValue     uint16
}

// FRECON is the register map of the FRECON drive family.
var FRECON = Commands{
	CmdAddress:    0x2000,
	RefAddress:    0x2001,
	StatusAddress: 0x3000,
	FwValue:       0x0001,
	RvValue:       0x0002,
	StopValue:     0x0005,
}

// MEGMEET is the register map of the MEGMEET drive family.
var MEGMEET = Commands{
	CmdAddress:    0x6400,
	RefAddress:    0x6401,
	StatusAddress: 0x6505,
	FwValue:       0x0034,
	RvValue:       0x003C,
	StopValue:     0x0035,
}

// Encoder maps drive transactions to MODBUS RTU frames and back.
// Writes use function 0x06, the status read uses function 0x03.
type Encoder struct {
	commands Commands
	log      *zap.Logger
}

// NewEncoder creates an encoder for a vendor register map.
func NewEncoder(commands Commands, log *zap.Logger) *Encoder {
	return &Encoder{
		commands: commands,
		log:      log,
	}
}

// RequestToSerial builds the RTU frame for a drive transaction.
func (e *Encoder) RequestToSerial(req Request) (transport.Message, bool) {
	var p *pdu.PDU
	switch req.Kind {
	case ReqCmd:
		p = pdu.WriteSingleRegister(e.commands.CmdAddress, req.Dir.value(e.commands))
	case ReqRef:
		p = pdu.WriteSingleRegister(e.commands.RefAddress, req.Reference)
	case ReqStop:
		p = pdu.WriteSingleRegister(e.commands.CmdAddress, e.commands.StopValue)
	case ReqStatus:
		p = pdu.ReadHoldingRegisters(e.commands.StatusAddress, 1)
	default:
		return nil, false
	}
	return transport.Send{Data: pdu.AssembleRTU(req.Device.Byte(), p)}, true
}

// SerialToResponse decodes the wire answer to a drive transaction. A
// missing answer, a slave ID mismatch or an undecodable frame all
// produce a Fail carrying the original request so the drive actor can
// retry it.
func (e *Encoder) SerialToResponse(msg transport.Message, req Request, id modbus.ID) Response {
	switch m := msg.(type) {
	case transport.Receive:
		if len(m.Data) == 0 || m.Data[0] != id.Byte() {
			e.log.Error("slave id mismatch",
				zap.Stringer("device", id), zap.Binary("frame", m.Data))
			return Response{Kind: RespFail, Request: req}
		}
		if response, ok := e.decode(m.Data, req); ok {
			return response
		}
		e.log.Error("cannot decode drive response",
			zap.Stringer("device", id), zap.Binary("frame", m.Data))
		return Response{Kind: RespFail, Request: req}
	case transport.NoResponse:
		e.log.Error("no response from drive", zap.Stringer("request", req))
		return Response{Kind: RespFail, Request: req}
	default:
		panic("unfiltered serial message reached the drive encoder")
	}
}

// FilterResponse applies the shared pre-filter.
func (e *Encoder) FilterResponse(msg transport.Message) (transport.Message, bool) {
	return batch.DefaultFilter(msg, e.log)
}

// decode matches a parsed RTU answer against the transaction that
// produced it.
func (e *Encoder) decode(data []byte, req Request) (Response, bool) {
	_, p, err := pdu.ParseRTU(data)
	if err != nil {
		e.log.Debug("malformed drive frame", zap.Error(err))
		return Response{}, false
	}

	switch {
	case req.Kind == ReqStatus && p.FunctionCode == modbus.FuncCodeReadHoldingRegisters:
		registers, err := p.HoldingRegisters()
		if err != nil || len(registers) != 1 {
			e.log.Debug("status response shape mismatch", zap.Error(err))
			return Response{}, false
		}
		reference := registerToInt16(registers[0])
		status := host.DriveStatus{State: host.DriveStopped}
		if reference != 0 {
			status = host.DriveStatus{State: host.DriveRunning, Reference: reference}
		}
		return Response{Kind: RespStatus, Status: status}, true

	case p.FunctionCode == modbus.FuncCodeWriteSingleRegister:
		address, value, err := p.WrittenRegister()
		if err != nil {
			return Response{}, false
		}
		switch req.Kind {
		case ReqCmd:
			if address == e.commands.CmdAddress && value == req.Dir.value(e.commands) {
				return Response{Kind: RespOK, Request: req}, true
			}
		case ReqRef:
			if address == e.commands.RefAddress && value == req.Reference {
				return Response{Kind: RespOK, Request: req}, true
			}
		case ReqStop:
			if address == e.commands.CmdAddress && value == e.commands.StopValue {
				return Response{Kind: RespOK, Request: req}, true
			}
		}
	}
	e.log.Debug("unrecognized response pattern", zap.Stringer("request", req))
	return Response{}, false
}

// registerToInt16 decodes the drives' sign-magnitude register encoding:
// bit 15 is the sign, the low 15 bits the magnitude. This is not two's
// complement; it matches what the drives put on the wire.
func registerToInt16(u uint16) int16 {
	v := int16(u & 0x7FFF)
	if u&0x8000 != 0 {
		v = -v
	}
	return v
}
