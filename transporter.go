// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package rfe

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// FrameTransporter sends and receives raw frame bytes over a serial port
// or any io.ReadWriteCloser (a TCP-attached reader works the same way).
// Framing is left to the packager and decoder; this layer only moves
// chunks and bounds the blocking calls.
type FrameTransporter struct {
	conn         io.ReadWriteCloser
	writeTimeout time.Duration
	mu           sync.Mutex
}

// NewFrameTransporter creates a transporter over an open connection.
func NewFrameTransporter(conn io.ReadWriteCloser, writeTimeout time.Duration) *FrameTransporter {
	return &FrameTransporter{conn: conn, writeTimeout: writeTimeout}
}

// WriteRaw writes the complete buffer to the underlying connection.
func (t *FrameTransporter) WriteRaw(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("transport closed")
	}
	if len(data) == 0 {
		return fmt.Errorf("cannot write empty data")
	}
	if c, ok := t.conn.(net.Conn); ok && t.writeTimeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		defer c.SetWriteDeadline(time.Time{})
	}
	written := 0
	for written < len(data) {
		n, err := t.conn.Write(data[written:])
		if err != nil {
			return fmt.Errorf("write failed after %d bytes: %v", written, err)
		}
		written += n
	}
	return nil
}

// ReadRaw reads up to maxLen bytes, blocking until data arrives, the
// context expires, or the port errors. A context deadline surfaces as
// ctx.Err() so the caller can treat it as a response timeout.
func (t *FrameTransporter) ReadRaw(ctx context.Context, maxLen int) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("transport closed")
	}
	if maxLen <= 0 {
		maxLen = MaxFrameSize
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, maxLen)
		n, err := conn.Read(buf)
		if err != nil {
			done <- result{nil, err}
			return
		}
		done <- result{buf[:n], nil}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("read failed: %v", res.err)
		}
		return res.data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the underlying connection.
func (t *FrameTransporter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// IsConnected returns true if the connection is still open.
func (t *FrameTransporter) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}
