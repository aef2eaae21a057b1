package transport

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// SerialConfig configures a local serial link as 8N1 without flow control.
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration // 0 blocks forever
}

// OpenSerial opens and configures a serial port.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set timeout for %s: %w", cfg.Device, err)
		}
	}
	return &serialPort{Port: port}, nil
}

// serialPort reports an expired read timeout as an error. The serial driver
// returns (0, nil) instead, which would make io.ReadFull spin forever.
type serialPort struct {
	serial.Port
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}
