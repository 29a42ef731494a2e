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
	"strings"
	"testing"
)

type bufferSink struct {
	bytes.Buffer
	closed bool
}

func (b *bufferSink) Close() error {
	b.closed = true
	return nil
}

func TestLoggerFiltersByLevel(t *testing.T) {
	sink := &bufferSink{}
	logger := NewSimpleLogger(sink, LevelWarning, "TEST")
	defer logger.Close()

	logger.Write([]byte("[DEBUG] filtered out"))
	logger.Write([]byte("[INFO] filtered out"))
	logger.Write([]byte("[WARNING] shown"))
	logger.Write([]byte("[ERROR] shown"))

	out := sink.String()
	if strings.Contains(out, "filtered out") {
		t.Errorf("messages below the level leaked through: %q", out)
	}
	if !strings.Contains(out, "[WARNING] <TEST> shown") {
		t.Errorf("warning message missing from output: %q", out)
	}
	if !strings.Contains(out, "[ERROR] <TEST> shown") {
		t.Errorf("error message missing from output: %q", out)
	}
}

func TestLoggerDefaultLevelIsInfo(t *testing.T) {
	sink := &bufferSink{}
	logger := NewSimpleLogger(sink, LevelInfo, "TEST")
	defer logger.Close()

	// No recognizable prefix defaults to info.
	logger.Write([]byte("plain message"))
	if !strings.Contains(sink.String(), "[INFO] <TEST> plain message") {
		t.Errorf("unexpected output: %q", sink.String())
	}
}

func TestLoggerSetLevelFromString(t *testing.T) {
	sink := &bufferSink{}
	logger := NewSimpleLogger(sink, LevelError, "TEST")
	defer logger.Close()

	if err := logger.SetLevelFromString("debug"); err != nil {
		t.Fatalf("SetLevelFromString(debug): %v", err)
	}
	if logger.GetLevel() != LevelDebug {
		t.Errorf("level = %v, want %v", logger.GetLevel(), LevelDebug)
	}
	logger.Write([]byte("[DEBUG] now visible"))
	if !strings.Contains(sink.String(), "now visible") {
		t.Errorf("debug message missing after lowering level: %q", sink.String())
	}

	if err := logger.SetLevelFromString("INVALID"); err == nil {
		t.Error("expected error for invalid level string")
	}
}

func TestLoggerLevelNoneSilencesEverything(t *testing.T) {
	sink := &bufferSink{}
	logger := NewSimpleLogger(sink, LevelNone, "TEST")
	defer logger.Close()

	logger.Write([]byte("[ERROR] should not appear"))
	if sink.Len() != 0 {
		t.Errorf("LevelNone produced output: %q", sink.String())
	}
}

func TestLoggerCloseClosesSink(t *testing.T) {
	sink := &bufferSink{}
	logger := NewSimpleLogger(sink, LevelInfo, "TEST")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.closed {
		t.Error("underlying sink not closed")
	}
}
