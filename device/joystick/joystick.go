// Package joystick implements the joystick actor: a read-only device
// polled for its axis registers. It never answers controller requests;
// axis changes are only logged.
package joystick

import (
	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/batch"
	"github.com/pythcoiner/modbus-router/device"
	"github.com/pythcoiner/modbus-router/host"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/poller"
	"github.com/pythcoiner/modbus-router/router"
)

// Joystick is one joystick actor.
type Joystick struct {
	id           modbus.ID
	joystickType Type
	status       Status
	links        device.Links[Request, Response]
	log          *zap.Logger
}

// New creates a joystick actor.
func New(id modbus.ID, joystickType Type, log *zap.Logger) *Joystick {
	return &Joystick{
		id:           id,
		joystickType: joystickType,
		log:          log,
	}
}

// ID returns the joystick's MODBUS ID.
func (j *Joystick) ID() modbus.ID {
	return j.id
}

// ConnectRouter links the joystick to the host router. Requests routed
// here are dropped, but broadcast fan-out still counts the joystick.
func (j *Joystick) ConnectRouter(r *router.Router) {
	j.links.ConnectRouter(r, j.id)
}

// ConnectPoller links the joystick to its port's poller.
func (j *Joystick) ConnectPoller(p *poller.Poller[Request, Response]) {
	j.links.ConnectPoller(p, j.id)
}

// Start launches the actor loop.
func (j *Joystick) Start() {
	go device.Run[Request, Response](j, &j.links, j.log)
}

// SendBatch answers a poll tick with a single status read.
func (j *Joystick) SendBatch() {
	b := batch.New[Request, Response](j.id, NewEncoder(j.joystickType, j.log), j.log)
	b.Push(StatusRequest(j.id, j.joystickType))
	j.links.Poller.Batches <- b
}

// HandleExternalRequest drops every controller request.
func (j *Joystick) HandleExternalRequest(host.Request) {}

// HandleDeviceResponse updates the cached snapshot; failed reads are
// discarded.
func (j *Joystick) HandleDeviceResponse(response Response) {
	switch response.Kind {
	case RespStatus:
		j.updateStatus(response.Status)
	case RespFail:
		// TODO: count lost reads per joystick so a dying bus is visible
		// before it goes fully silent.
	}
}

// updateStatus logs the snapshot only when it actually changed.
func (j *Joystick) updateStatus(status Status) {
	if status.Equal(j.status) {
		return
	}
	j.log.Info("joystick moved",
		zap.Stringer("device", j.id), zap.Stringer("axes", status))
	j.status = status
}
