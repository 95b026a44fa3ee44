// Package vfd implements the variable-frequency-drive actor: it turns
// controller commands into drive transaction batches, retries failed
// writes, and caches the drive's reported status.
package vfd

import (
	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/batch"
	"github.com/pythcoiner/modbus-router/device"
	"github.com/pythcoiner/modbus-router/host"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/poller"
	"github.com/pythcoiner/modbus-router/router"
)

// pending coalesces controller commands between two poll ticks. The cmd
// and reference slots are filled together by controller requests and
// drained together by take; the status slot is perpetual. A new command
// arriving while the slots are full is dropped: one command pair is all
// a drive can absorb per poll cycle.
type pending struct {
	cmd       *Request
	reference *Request
	status    Request
}

func newPending(id modbus.ID) pending {
	return pending{
		status: StatusRequest(id),
	}
}

// handleRequest folds a Run or Stop controller request into the slots.
func (p *pending) handleRequest(request host.Request, deviceID modbus.ID) {
	switch r := request.(type) {
	case host.Run:
		if p.cmd != nil || p.reference != nil {
			return
		}
		var cmd, reference Request
		if r.Reference == 0 {
			cmd = StopRequest(deviceID)
			reference = RefRequest(deviceID, 0)
		} else {
			dir := Forward
			if r.Reference < 0 {
				dir = Reverse
			}
			cmd = CmdRequest(deviceID, dir)
			reference = RefRequest(deviceID, magnitude(r.Reference))
		}
		p.cmd = &cmd
		p.reference = &reference
	case host.Stop:
		if r.Target == deviceID && p.cmd == nil && p.reference == nil {
			cmd := StopRequest(deviceID)
			reference := RefRequest(deviceID, 0)
			p.cmd = &cmd
			p.reference = &reference
		}
	default:
		panic("status requests are answered before reaching the pending slots")
	}
}

// retry re-inserts a failed write so the next poll re-sends it, unless
// a fresher command already claimed the slot.
func (p *pending) retry(request Request) {
	switch request.Kind {
	case ReqStatus:
		// Status reads are never retried.
	case ReqCmd, ReqStop:
		if p.cmd == nil {
			r := request
			p.cmd = &r
		}
	case ReqRef:
		if p.reference == nil {
			r := request
			p.reference = &r
		}
	}
}

// take drains the command pair, leaving the perpetual status slot.
func (p *pending) take() pending {
	out := *p
	p.cmd = nil
	p.reference = nil
	return out
}

// magnitude returns the 15-bit magnitude of a signed reference; the one
// value without an int16 magnitude, -32768, collapses to 0.
func magnitude(v int16) uint16 {
	m := int32(v)
	if m < 0 {
		m = -m
	}
	return uint16(m) & 0x7FFF
}

// Vfd is one drive actor.
type Vfd struct {
	id         modbus.ID
	commands   Commands
	status     host.DriveStatus
	batch      pending
	links      device.Links[Request, Response]
	autoUpdate bool
	pollStatus bool
	log        *zap.Logger
}

// New creates a drive actor. pollStatus selects whether every poll
// cycle also reads the status register.
func New(id modbus.ID, commands Commands, pollStatus bool, log *zap.Logger) *Vfd {
	return &Vfd{
		id:         id,
		commands:   commands,
		batch:      newPending(id),
		pollStatus: pollStatus,
		log:        log,
	}
}

// ID returns the drive's MODBUS ID.
func (v *Vfd) ID() modbus.ID {
	return v.id
}

// ConnectRouter links the drive to the host router.
func (v *Vfd) ConnectRouter(r *router.Router) {
	v.links.ConnectRouter(r, v.id)
}

// ConnectPoller links the drive to its port's poller.
func (v *Vfd) ConnectPoller(p *poller.Poller[Request, Response]) {
	v.links.ConnectPoller(p, v.id)
}

// Start launches the actor loop; the Vfd must not be touched directly
// afterwards.
func (v *Vfd) Start() {
	go device.Run[Request, Response](v, &v.links, v.log)
}

// SendBatch drains the pending slots into a wire batch and hands it to
// the poller: command first, then reference, then the status read when
// status polling is on.
func (v *Vfd) SendBatch() {
	taken := v.batch.take()
	b := batch.New[Request, Response](v.id, NewEncoder(v.commands, v.log), v.log)
	if taken.cmd != nil {
		b.Push(*taken.cmd)
	}
	if taken.reference != nil {
		b.Push(*taken.reference)
	}
	if v.pollStatus {
		b.Push(taken.status)
	}
	v.links.Poller.Batches <- b
}

// HandleExternalRequest services one controller request. Status queries
// answer immediately from the cached status; Run and Stop are folded
// into the pending slots for the next poll.
func (v *Vfd) HandleExternalRequest(request host.Request) {
	switch r := request.(type) {
	case host.Status:
		if r.Target != v.id {
			v.log.Error("status request for wrong device",
				zap.Stringer("device", v.id), zap.Stringer("target", r.Target))
			return
		}
		v.links.SendExternalResponse(host.StatusResponse{Source: v.id, Status: v.status}, v.log)
	default:
		v.batch.handleRequest(request, v.id)
	}
}

// HandleDeviceResponse folds one wire outcome back into the actor:
// failed writes are re-queued, status reads refresh the cache, write
// acknowledgments need no action.
func (v *Vfd) HandleDeviceResponse(response Response) {
	switch response.Kind {
	case RespFail:
		if response.Request.Kind != ReqStatus {
			v.batch.retry(response.Request)
		}
	case RespStatus:
		v.status = response.Status
		if v.autoUpdate {
			v.links.SendExternalResponse(host.StatusResponse{Source: v.id, Status: v.status}, v.log)
		}
	case RespOK:
		// Acknowledgment only.
	}
}
