package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaud = 9600

// Dial opens a byte stream to a device address:
//
//	tcp://host:port                 TCP bridge to a serial line (e.g. ser2net)
//	serial:///dev/ttyACM0?baud=9600 local serial port
//	/dev/ttyACM0                    local serial port at DefaultBaud
//
// timeout bounds connection setup for TCP and every read for serial ports.
func Dial(addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	if !strings.Contains(addr, "://") {
		return OpenSerial(SerialConfig{Device: addr, Baud: DefaultBaud, ReadTimeout: timeout})
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid device address %q: %w", addr, err)
	}

	switch u.Scheme {
	case "tcp":
		return net.DialTimeout("tcp", u.Host, timeout)
	case "serial":
		device := u.Path
		if device == "" {
			device = u.Host // serial://COM3
		}
		baud := DefaultBaud
		if v := u.Query().Get("baud"); v != "" {
			baud, err = strconv.Atoi(v)
			if err != nil || baud <= 0 {
				return nil, fmt.Errorf("invalid baud rate %q in %q", v, addr)
			}
		}
		return OpenSerial(SerialConfig{Device: device, Baud: baud, ReadTimeout: timeout})
	default:
		return nil, fmt.Errorf("unsupported device address scheme %q", u.Scheme)
	}
}

// Dialer returns a pool Factory for addr.
func Dialer(addr string, timeout time.Duration) Factory {
	return func() (io.ReadWriteCloser, error) {
		return Dial(addr, timeout)
	}
}
