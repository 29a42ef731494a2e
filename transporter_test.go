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
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

// mockPort is a simple in-memory ReadWriteCloser for testing.
type mockPort struct {
	io.Reader
	io.Writer
	closed bool
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func TestTransporterWriteReadRaw(t *testing.T) {
	buf := &bytes.Buffer{}
	port := &mockPort{Reader: buf, Writer: buf}
	transport := NewFrameTransporter(port, 0)

	data := []byte{0x52, 0x46, 0x45, 0x01}
	if err := transport.WriteRaw(data); err != nil {
		t.Fatalf("WriteRaw failed: %v", err)
	}

	out, err := transport.ReadRaw(context.Background(), len(data))
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	assertBytesEqual(t, data, out)
}

func TestTransporterWriteEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	transport := NewFrameTransporter(&mockPort{Reader: buf, Writer: buf}, 0)
	if err := transport.WriteRaw(nil); err == nil {
		t.Error("expected error for empty write")
	}
}

func TestTransporterReadCancelled(t *testing.T) {
	// A reader that never delivers data, like an idle serial port.
	pr, pw := io.Pipe()
	defer pw.Close()
	transport := NewFrameTransporter(&mockPort{Reader: pr, Writer: pw}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := transport.ReadRaw(ctx, MaxFrameSize)
	if err != context.DeadlineExceeded {
		t.Errorf("ReadRaw returned %v, want context.DeadlineExceeded", err)
	}
}

func TestTransporterCloseIsConnected(t *testing.T) {
	buf := &bytes.Buffer{}
	port := &mockPort{Reader: buf, Writer: buf}
	transport := NewFrameTransporter(port, 0)

	if !transport.IsConnected() {
		t.Error("IsConnected should be true after creation")
	}
	if err := transport.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if transport.IsConnected() {
		t.Error("IsConnected should be false after Close")
	}
	if !port.closed {
		t.Error("underlying port not closed")
	}

	// Operations on a closed transport fail instead of panicking.
	if err := transport.WriteRaw([]byte{0x01}); err == nil {
		t.Error("expected error writing to closed transport")
	}
	if _, err := transport.ReadRaw(context.Background(), 1); err == nil {
		t.Error("expected error reading from closed transport")
	}
	if err := transport.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
