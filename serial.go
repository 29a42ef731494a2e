package rfe

import (
	"fmt"
	"io"
	"net"
	"time"

	goserial "github.com/hootrhino/goserial"
)

// OpenSerial opens the named serial port with the reader's link settings
// (8N1). The returned port feeds NewReader. Failure to open wraps
// ErrPortUnavailable so callers can distinguish a missing or busy port
// from protocol-level failures.
func OpenSerial(address string, baudRate int, timeout time.Duration) (io.ReadWriteCloser, error) {
	if baudRate <= 0 {
		baudRate = 9600
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	port, err := goserial.Open(&goserial.Config{
		Address:  address,
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, address, err)
	}
	return port, nil
}

// OpenTCP dials a reader attached through a serial-to-ethernet bridge.
// The returned connection feeds NewReader the same way a serial port
// does; the transport layer picks up write deadlines from it.
func OpenTCP(address string, timeout time.Duration) (io.ReadWriteCloser, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, address, err)
	}
	return conn, nil
}
