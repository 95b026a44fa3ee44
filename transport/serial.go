package transport

import (
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConfig holds serial port configuration. The buses this system
// drives are all 8N1, so only the port name and baud rate vary.
type SerialConfig struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits serial.StopBits
	Parity   serial.Parity
}

// NewSerialConfig creates an 8N1 serial configuration.
func NewSerialConfig(port string, baudRate int) *SerialConfig {
	return &SerialConfig{
		Port:     port,
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
}

// port is the slice of go.bug.st/serial.Port the task actually uses.
type port interface {
	SetReadTimeout(t time.Duration) error
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
}

// Interface is the serial port task. It owns the port exclusively and
// talks to its poller only through the Commands and Events channels.
// Ownership transfers to the task goroutine when Run starts; the poller
// keeps only the channel endpoints.
type Interface struct {
	config   *SerialConfig
	commands chan Message
	events   chan Message
	timeout  time.Duration
	mode     Mode
	port     port
	open     func(cfg *SerialConfig) (port, error)
	log      *zap.Logger
}

const channelDepth = 16

// NewInterface creates a serial task for the given port configuration.
func NewInterface(config *SerialConfig, log *zap.Logger) *Interface {
	return &Interface{
		config:   config,
		commands: make(chan Message, channelDepth),
		events:   make(chan Message, channelDepth),
		mode:     ModeIdle,
		open:     openPort,
		log:      log,
	}
}

// Commands returns the channel the poller sends commands on.
func (s *Interface) Commands() chan<- Message {
	return s.commands
}

// Events returns the channel the serial task reports on.
func (s *Interface) Events() <-chan Message {
	return s.events
}

func openPort(cfg *SerialConfig) (port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	}
	return serial.Open(cfg.Port, mode)
}

// Run services the command channel until it is closed. Call it on its
// own goroutine.
func (s *Interface) Run() {
	for msg := range s.commands {
		switch m := msg.(type) {
		case Connect:
			p, err := s.open(s.config)
			if err != nil {
				s.log.Error("cannot open serial port",
					zap.String("port", s.config.Port), zap.Error(err))
			} else {
				s.port = p
			}
			s.events <- Connected{OK: err == nil}
		case SetTimeout:
			s.log.Debug("set timeout", zap.Duration("timeout", m.Timeout))
			s.timeout = m.Timeout
		case SetMode:
			s.log.Debug("set mode", zap.Stringer("mode", m.Mode))
			s.mode = m.Mode
		case Send:
			if s.port == nil {
				s.log.Error("send on unconnected port", zap.String("port", s.config.Port))
				continue
			}
			if _, err := s.port.Write(m.Data); err != nil {
				s.log.Error("serial write failed", zap.Error(err))
				continue
			}
			s.log.Debug("sent", zap.Binary("frame", m.Data))
			if s.mode == ModeMasterStream {
				s.events <- s.readFrame()
			}
		default:
			s.log.Debug("dropping unexpected serial command")
		}
	}
	if s.port != nil {
		_ = s.port.Close()
	}
}

// readFrame waits up to the configured timeout for the first bytes of a
// response, then accumulates until an inter-character gap of 3.5
// character times passes with nothing new on the wire.
func (s *Interface) readFrame() Message {
	buf := make([]byte, 256)

	if err := s.port.SetReadTimeout(s.timeout); err != nil {
		s.log.Error("cannot set read timeout", zap.Error(err))
		return NoResponse{}
	}
	n, err := s.port.Read(buf)
	if err != nil || n == 0 {
		return NoResponse{}
	}
	frame := append([]byte(nil), buf[:n]...)

	gap := s.frameGap()
	for {
		if err := s.port.SetReadTimeout(gap); err != nil {
			break
		}
		n, err := s.port.Read(buf)
		if err != nil || n == 0 {
			break
		}
		frame = append(frame, buf[:n]...)
	}
	s.log.Debug("received", zap.Binary("frame", frame))
	return Receive{Data: frame}
}

// frameGap returns the RTU end-of-frame silence: 3.5 character times at
// the configured baud rate, floored at one millisecond so the port's
// timeout granularity cannot split frames.
func (s *Interface) frameGap() time.Duration {
	gap := time.Duration(3.5 * float64(characterTime(s.config)))
	if gap < time.Millisecond {
		gap = time.Millisecond
	}
	return gap
}

// characterTime calculates the time one character occupies on the wire.
func characterTime(cfg *SerialConfig) time.Duration {
	// Start bit + data bits + parity bit (if any) + stop bits.
	stopBits := 1
	if cfg.StopBits == serial.TwoStopBits {
		stopBits = 2
	}
	bitsPerChar := 1 + cfg.DataBits + stopBits
	if cfg.Parity != serial.NoParity {
		bitsPerChar++
	}
	return time.Duration(int64(bitsPerChar) * 1_000_000_000 / int64(cfg.BaudRate))
}
