package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// fakePort scripts the byte chunks successive reads return; an empty
// chunk models a read timeout (n=0, no error) the way go.bug.st/serial
// reports one.
type fakePort struct {
	reads   [][]byte
	next    int
	writes  [][]byte
	timeout time.Duration
	closed  bool
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if p.next >= len(p.reads) {
		return 0, nil
	}
	chunk := p.reads[p.next]
	p.next++
	return copy(buf, chunk), nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.writes = append(p.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newFakeInterface(t *testing.T, p port, openErr error) *Interface {
	t.Helper()
	s := NewInterface(NewSerialConfig("/dev/fake", 115200), zap.NewNop())
	s.open = func(*SerialConfig) (port, error) {
		if openErr != nil {
			return nil, openErr
		}
		return p, nil
	}
	return s
}

func expectEvent(t *testing.T, s *Interface) Message {
	t.Helper()
	select {
	case msg := <-s.Events():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no serial event")
		return nil
	}
}

func TestConnectReportsSuccess(t *testing.T) {
	s := newFakeInterface(t, &fakePort{}, nil)
	go s.Run()
	defer close(s.commands)

	s.Commands() <- Connect{}
	assert.Equal(t, Connected{OK: true}, expectEvent(t, s))
}

func TestConnectReportsFailure(t *testing.T) {
	s := newFakeInterface(t, nil, errors.New("no such device"))
	go s.Run()
	defer close(s.commands)

	s.Commands() <- Connect{}
	assert.Equal(t, Connected{OK: false}, expectEvent(t, s))
}

func TestMasterStreamSendReadsResponse(t *testing.T) {
	p := &fakePort{reads: [][]byte{{0x14, 0x06}, {0x20, 0x00, 0x00, 0x01, 0x42, 0x43}}}
	s := newFakeInterface(t, p, nil)
	go s.Run()
	defer close(s.commands)

	s.Commands() <- Connect{}
	require.Equal(t, Connected{OK: true}, expectEvent(t, s))

	s.Commands() <- SetTimeout{Timeout: 5 * time.Millisecond}
	s.Commands() <- SetMode{Mode: ModeMasterStream}
	s.Commands() <- Send{Data: []byte{0x01, 0x02, 0x03}}

	// The response frame is reassembled across the chunked reads.
	msg := expectEvent(t, s)
	require.IsType(t, Receive{}, msg)
	assert.Equal(t, []byte{0x14, 0x06, 0x20, 0x00, 0x00, 0x01, 0x42, 0x43}, msg.(Receive).Data)

	assert.Equal(t, [][]byte{{0x01, 0x02, 0x03}}, p.writes)
}

func TestMasterStreamTimeoutYieldsNoResponse(t *testing.T) {
	p := &fakePort{}
	s := newFakeInterface(t, p, nil)
	go s.Run()
	defer close(s.commands)

	s.Commands() <- Connect{}
	require.Equal(t, Connected{OK: true}, expectEvent(t, s))
	s.Commands() <- SetMode{Mode: ModeMasterStream}
	s.Commands() <- Send{Data: []byte{0x01}}

	assert.Equal(t, NoResponse{}, expectEvent(t, s))
}

func TestIdleModeSendExpectsNoReply(t *testing.T) {
	p := &fakePort{reads: [][]byte{{0xFF}}}
	s := newFakeInterface(t, p, nil)
	go s.Run()

	s.Commands() <- Connect{}
	require.Equal(t, Connected{OK: true}, expectEvent(t, s))
	s.Commands() <- Send{Data: []byte{0x01}}
	close(s.commands)

	select {
	case msg := <-s.Events():
		t.Fatalf("unexpected event %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendWithoutConnectIsDropped(t *testing.T) {
	p := &fakePort{}
	s := newFakeInterface(t, p, nil)
	go s.Run()
	defer close(s.commands)

	s.Commands() <- SetMode{Mode: ModeMasterStream}
	s.Commands() <- Send{Data: []byte{0x01}}

	select {
	case msg := <-s.Events():
		t.Fatalf("unexpected event %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, p.writes)
}

func TestCharacterTime(t *testing.T) {
	// 8N1 at 115200 baud: 10 bits per character.
	cfg := NewSerialConfig("/dev/fake", 115200)
	assert.Equal(t, time.Duration(10*1_000_000_000/115200), characterTime(cfg))

	// 8E2 carries 12 bits.
	cfg.Parity = serial.EvenParity
	cfg.StopBits = serial.TwoStopBits
	assert.Equal(t, time.Duration(12*1_000_000_000/115200), characterTime(cfg))
}

func TestFrameGapFloor(t *testing.T) {
	s := NewInterface(NewSerialConfig("/dev/fake", 115200), zap.NewNop())
	assert.Equal(t, time.Millisecond, s.frameGap())

	slow := NewInterface(NewSerialConfig("/dev/fake", 1200), zap.NewNop())
	assert.Greater(t, slow.frameGap(), time.Millisecond)
}