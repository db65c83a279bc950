package main

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// serialReadTimeout lets a blocked read notice that the port was closed.
const serialReadTimeout = 500 * time.Millisecond

// serialLink is a UART the bridge reads commands from. tarm/serial reports
// a read timeout as io.EOF, which serialLink turns into a retry until the
// link is closed.
type serialLink struct {
	port   *serial.Port
	closed atomic.Bool
}

func openSerial(name string, baud int) (*serialLink, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	return &serialLink{port: port}, nil
}

func (l *serialLink) Read(b []byte) (int, error) {
	for {
		n, err := l.port.Read(b)
		if n > 0 || !errors.Is(err, io.EOF) {
			return n, err
		}

		if l.closed.Load() {
			return 0, io.EOF
		}
	}
}

func (l *serialLink) Write(b []byte) (int, error) {
	return l.port.Write(b)
}

func (l *serialLink) Close() error {
	l.closed.Store(true)
	return l.port.Close()
}
