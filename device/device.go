// Package device holds the plumbing every device actor shares: the
// connector pair linking it to its router and poller, and the run loop
// multiplexing the two.
package device

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/host"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/poller"
	"github.com/pythcoiner/modbus-router/router"
)

// Actor is the device-specific half of an actor: state handling for
// host requests, poll ticks and wire responses.
type Actor[Req, Resp any] interface {
	ID() modbus.ID
	// SendBatch builds the device's next transaction batch and hands
	// it to the poller; called on every poll tick.
	SendBatch()
	HandleExternalRequest(request host.Request)
	HandleDeviceResponse(response Resp)
}

// Links holds a device's channel endpoints. Both must be connected
// before the run loop starts.
type Links[Req, Resp any] struct {
	Router *router.Connector
	Poller *poller.Connector[Req, Resp]
}

// ConnectRouter claims the device's router endpoint. It panics when the
// device is already connected or the ID is already claimed; wiring bugs
// must not survive startup.
func (l *Links[Req, Resp]) ConnectRouter(r *router.Router, id modbus.ID) {
	if l.Router != nil {
		panic(fmt.Sprintf("device %s: router already connected", id))
	}
	conn, ok := r.Connector(id)
	if !ok {
		panic(fmt.Sprintf("device %s: router connector already taken", id))
	}
	l.Router = conn
}

// ConnectPoller claims the device's poller endpoint, with the same
// panics as ConnectRouter.
func (l *Links[Req, Resp]) ConnectPoller(p *poller.Poller[Req, Resp], id modbus.ID) {
	if l.Poller != nil {
		panic(fmt.Sprintf("device %s: poller already connected", id))
	}
	conn, ok := p.Connector(id)
	if !ok {
		panic(fmt.Sprintf("device %s: poller connector already taken", id))
	}
	l.Poller = conn
}

// SendExternalResponse pushes a response toward the router without ever
// blocking the actor; a congested return path drops the response.
func (l *Links[Req, Resp]) SendExternalResponse(response host.Response, log *zap.Logger) {
	select {
	case l.Router.Responses <- response:
	default:
		log.Error("response channel full, dropping response")
	}
}

// Run is the shared device loop: it services host requests and poller
// events until the process exits. Call it on the device's goroutine.
func Run[Req, Resp any](actor Actor[Req, Resp], links *Links[Req, Resp], log *zap.Logger) {
	if links.Router == nil {
		panic(fmt.Sprintf("device %s: no router", actor.ID()))
	}
	if links.Poller == nil {
		panic(fmt.Sprintf("device %s: no poller", actor.ID()))
	}
	log.Info("device started", zap.Stringer("device", actor.ID()))
	for {
		select {
		case request := <-links.Router.Requests:
			log.Debug("external request", zap.Stringer("device", actor.ID()))
			actor.HandleExternalRequest(request)
		case event := <-links.Poller.Events:
			switch event.Kind {
			case poller.EventPoll:
				actor.SendBatch()
			case poller.EventResponse:
				actor.HandleDeviceResponse(event.Response)
			}
		}
	}
}
