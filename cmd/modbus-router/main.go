// Command modbus-router bridges a controller speaking 8-byte frames on
// stdin/stdout to the drives and joysticks spread over the serial buses.
package main

import (
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/pythcoiner/modbus-router/config"
	"github.com/pythcoiner/modbus-router/device/joystick"
	"github.com/pythcoiner/modbus-router/device/vfd"
	"github.com/pythcoiner/modbus-router/logger"
	"github.com/pythcoiner/modbus-router/modbus"
	"github.com/pythcoiner/modbus-router/poller"
	"github.com/pythcoiner/modbus-router/router"
	"github.com/pythcoiner/modbus-router/transport"
)

type options struct {
	Config string `long:"config" description:"path to a YAML config file"`

	Args struct {
		RouterLevel string   `positional-arg-name:"router_log_level"`
		SerialLevel string   `positional-arg-name:"serial_log_level"`
		Ports       []string `positional-arg-name:"port"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(cfg, &opts)

	routerLog, err := logger.New(logger.Config{Level: cfg.Log.RouterLevel, LogDir: cfg.Log.Dir})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	serialLog, err := logger.New(logger.Config{Level: cfg.Log.SerialLevel, LogDir: cfg.Log.Dir})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() {
		_ = routerLog.Sync()
		_ = serialLog.Sync()
	}()

	r := router.New(os.Stdin, os.Stdout, routerLog.Named("router"))

	for _, port := range cfg.Ports {
		if len(port.Joysticks) > 0 {
			startJoystickPort(port, r, routerLog, serialLog)
		} else {
			if err := startVfdPort(port, r, routerLog, serialLog); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	}

	// Let the device and poller tasks settle before pumping stdin.
	time.Sleep(100 * time.Millisecond)
	r.Run()
}

// applyOverrides lays the positional CLI arguments over the loaded
// configuration, preserving the historical invocation
// `modbus-router [router_level [serial_level [port0 .. port4]]]`.
func applyOverrides(cfg *config.Config, opts *options) {
	if opts.Args.RouterLevel != "" {
		cfg.Log.RouterLevel = opts.Args.RouterLevel
	}
	if opts.Args.SerialLevel != "" {
		cfg.Log.SerialLevel = opts.Args.SerialLevel
	}
	for i, device := range opts.Args.Ports {
		if i >= len(cfg.Ports) {
			break
		}
		cfg.Ports[i].Device = device
	}
}

func portTiming(port config.PortConfig) poller.Timing {
	return poller.Timing{
		FrameSilence:  port.FrameSilence(),
		DeviceSilence: port.DeviceSilence(),
		Timeout:       port.Timeout(),
	}
}

func startJoystickPort(port config.PortConfig, r *router.Router, log, serialLog *zap.Logger) {
	serial := transport.NewInterface(
		transport.NewSerialConfig(port.Device, port.BaudRate),
		serialLog.Named("serial").With(zap.String("port", port.Device)),
	)
	p := poller.New[joystick.Request, joystick.Response](
		port.Device, serial, portTiming(port), log.Named("poller"))

	for _, js := range port.Joysticks {
		model := joystick.Standard
		if js.Thumb {
			model = joystick.WithThumb
		}
		j := joystick.New(modbus.IDFromByte(js.ID), model, log.Named("joystick"))
		j.ConnectPoller(p)
		j.ConnectRouter(r)
		j.Start()
	}
	p.Start()
}

func startVfdPort(port config.PortConfig, r *router.Router, log, serialLog *zap.Logger) error {
	serial := transport.NewInterface(
		transport.NewSerialConfig(port.Device, port.BaudRate),
		serialLog.Named("serial").With(zap.String("port", port.Device)),
	)
	p := poller.New[vfd.Request, vfd.Response](
		port.Device, serial, portTiming(port), log.Named("poller"))

	for _, drive := range port.Vfds {
		commands, err := commandsFor(drive.Vendor)
		if err != nil {
			return fmt.Errorf("port %s, drive %d: %w", port.Device, drive.ID, err)
		}
		v := vfd.New(modbus.IDFromByte(drive.ID), commands, drive.PollStatus, log.Named("vfd"))
		v.ConnectPoller(p)
		v.ConnectRouter(r)
		v.Start()
	}
	p.Start()
	return nil
}

func commandsFor(vendor string) (vfd.Commands, error) {
	switch vendor {
	case "frecon":
		return vfd.FRECON, nil
	case "megmeet":
		return vfd.MEGMEET, nil
	default:
		return vfd.Commands{}, fmt.Errorf("unknown drive vendor %q", vendor)
	}
}
