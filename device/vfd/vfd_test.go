package vfd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/batch"
	"github.com/pythcoiner/modbus-router/device"
	"github.com/pythcoiner/modbus-router/host"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/poller"
	"github.com/pythcoiner/modbus-router/router"
	"github.com/pythcoiner/modbus-router/transport"
)

// testVfd wires a drive actor to hand-made channels so its handlers can
// be exercised synchronously.
type testVfd struct {
	vfd       *Vfd
	batches   chan *batch.Batch[Request, Response]
	responses chan host.Response
}

func newTestVfd(t *testing.T, id uint8, commands Commands, pollStatus bool) *testVfd {
	t.Helper()
	batches := make(chan *batch.Batch[Request, Response], 1)
	events := make(chan poller.Event[Response], 16)
	requests := make(chan host.Request, 16)
	responses := make(chan host.Response, 16)

	v := New(modbus.ID(id), commands, pollStatus, zap.NewNop())
	v.links = device.Links[Request, Response]{
		Router: &router.Connector{Requests: requests, Responses: responses},
		Poller: &poller.Connector[Request, Response]{Batches: batches, Events: events},
	}
	return &testVfd{vfd: v, batches: batches, responses: responses}
}

// drain runs the pending batch dry, answering every transaction with a
// valid echo, and returns the wire payloads in send order.
func (tv *testVfd) drain(t *testing.T) [][]byte {
	t.Helper()
	tv.vfd.SendBatch()
	b := <-tv.batches

	var sent [][]byte
	for !b.IsEmpty() {
		msg, ok := b.Next()
		require.True(t, ok)
		frame := msg.(transport.Send).Data
		sent = append(sent, frame[:len(frame)-2])
		_, ok = b.HandleResponse(transport.Receive{Data: frame})
		require.True(t, ok)
	}
	return sent
}

func TestRunForwardProducesCmdThenRef(t *testing.T) {
	// Scenario: FRECON drive 20 commanded forward at 3000.
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: 3000})

	sent := tv.drain(t)
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x00, 0x00, 0x01}, sent[0])
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x01, 0x0B, 0xB8}, sent[1])
}

func TestRunReverse(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: -3000})

	sent := tv.drain(t)
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x00, 0x00, 0x02}, sent[0])
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x01, 0x0B, 0xB8}, sent[1])
}

func TestRunZeroBecomesStop(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: 0})

	sent := tv.drain(t)
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x00, 0x00, 0x05}, sent[0])
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x01, 0x00, 0x00}, sent[1])
}

func TestStopMegmeet(t *testing.T) {
	// Scenario: MEGMEET drive 40 stopped.
	tv := newTestVfd(t, 40, MEGMEET, false)
	tv.vfd.HandleExternalRequest(host.Stop{Target: 40})

	sent := tv.drain(t)
	require.Len(t, sent, 2)
	assert.Equal(t, []byte{0x28, 0x06, 0x64, 0x00, 0x00, 0x35}, sent[0])
	assert.Equal(t, []byte{0x28, 0x06, 0x64, 0x01, 0x00, 0x00}, sent[1])
}

func TestIdleWithStatusPollingSendsSingleStatusRead(t *testing.T) {
	// Scenario: idle drive with status polling emits exactly one frame.
	tv := newTestVfd(t, 20, FRECON, true)

	sent := tv.drain(t)
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x14, 0x03, 0x30, 0x00, 0x00, 0x01}, sent[0])
}

func TestIdleWithoutStatusPollingSendsNothing(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	assert.Empty(t, tv.drain(t))
}

func TestCommandWhileSlotsOccupiedIsDropped(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: 3000})
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: 500})

	sent := tv.drain(t)
	require.Len(t, sent, 2)
	// The first command pair survives; the second was dropped.
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x01, 0x0B, 0xB8}, sent[1])
}

func TestFailedCmdIsRetriedUnchanged(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: 3000})
	first := tv.drain(t)
	require.Len(t, first, 2)

	tv.vfd.HandleDeviceResponse(Response{Kind: RespFail, Request: CmdRequest(20, Forward)})

	retried := tv.drain(t)
	require.Len(t, retried, 1)
	assert.Equal(t, first[0], retried[0])
}

func TestFailedRefIsRetried(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleDeviceResponse(Response{Kind: RespFail, Request: RefRequest(20, 3000)})

	sent := tv.drain(t)
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x01, 0x0B, 0xB8}, sent[0])
}

func TestFailedStatusIsNotRetried(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleDeviceResponse(Response{Kind: RespFail, Request: StatusRequest(20)})
	assert.Empty(t, tv.drain(t))
}

func TestRetryDoesNotOverwriteFreshCommand(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: 500})
	tv.vfd.HandleDeviceResponse(Response{Kind: RespFail, Request: CmdRequest(20, Reverse)})

	sent := tv.drain(t)
	require.Len(t, sent, 2)
	// The fresh forward command wins over the stale retry.
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x00, 0x00, 0x01}, sent[0])
}

func TestStatusQueryAnswersFromCache(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)

	// Uninitialized status has no wire encoding: nothing reaches stdout.
	tv.vfd.HandleExternalRequest(host.Status{Target: 20})
	response := <-tv.responses
	_, ok := response.Encode()
	assert.False(t, ok)

	tv.vfd.HandleDeviceResponse(Response{
		Kind:   RespStatus,
		Status: host.DriveStatus{State: host.DriveRunning, Reference: 1200},
	})
	tv.vfd.HandleExternalRequest(host.Status{Target: 20})
	response = <-tv.responses
	status, isStatus := response.(host.StatusResponse)
	require.True(t, isStatus)
	assert.Equal(t, host.DriveStatus{State: host.DriveRunning, Reference: 1200}, status.Status)
}

func TestStatusUpdatesAreNotPushedByDefault(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleDeviceResponse(Response{
		Kind:   RespStatus,
		Status: host.DriveStatus{State: host.DriveRunning, Reference: 1200},
	})
	// auto_update defaults to off: status reaches the controller only
	// when queried.
	assert.Empty(t, tv.responses)
}

func TestRunMinReference(t *testing.T) {
	tv := newTestVfd(t, 20, FRECON, false)
	tv.vfd.HandleExternalRequest(host.Run{Target: 20, Reference: -32768})

	sent := tv.drain(t)
	require.Len(t, sent, 2)
	// Reverse command with the collapsed zero magnitude.
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x00, 0x00, 0x02}, sent[0])
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x01, 0x00, 0x00}, sent[1])
}
