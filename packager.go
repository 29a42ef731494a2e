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
	"fmt"
)

// RFE frame structure markers. A frame on the wire looks like:
//
//	'R' 'F' 'E'  0x01  cmd1 cmd2  0x02  len  [0x03  payload...]  0x04  cksum
//
// The 0x03 section is present only for a non-empty payload. The checksum
// is the XOR of every byte before it.
const (
	markerCommand  byte = 0x01
	markerLength   byte = 0x02
	markerPayload  byte = 0x03
	markerChecksum byte = 0x04
)

var syncMarker = []byte{'R', 'F', 'E', markerCommand}

const (
	// MinFrameSize is the size of a frame with an empty payload.
	MinFrameSize = 10
	// MaxPayloadSize is the largest payload the one-byte length can carry.
	MaxPayloadSize = 255
	// MaxFrameSize is the size of a frame with a full payload.
	MaxFrameSize = MaxPayloadSize + 11
)

// Frame is one decoded protocol frame.
type Frame struct {
	Cmd     Command
	Payload []byte
	Raw     []byte // complete wire bytes including checksum
}

// PURPackager packs and unpacks RFE reader host protocol frames with
// checksum validation.
type PURPackager struct{}

// NewPURPackager creates a new packager.
func NewPURPackager() *PURPackager {
	return &PURPackager{}
}

// FrameSize returns the wire size of a frame carrying payloadLen bytes.
func FrameSize(payloadLen int) int {
	if payloadLen == 0 {
		return MinFrameSize
	}
	return payloadLen + 11
}

// Pack creates a complete frame for the given command and payload.
func (p *PURPackager) Pack(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload too long: %d bytes (max %d)",
			ErrEncoding, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, FrameSize(len(payload)))
	frame = append(frame, syncMarker...)
	frame = append(frame, cmd[0], cmd[1])
	frame = append(frame, markerLength, byte(len(payload)))
	if len(payload) > 0 {
		frame = append(frame, markerPayload)
		frame = append(frame, payload...)
	}
	frame = append(frame, markerChecksum)
	frame = append(frame, Checksum(frame))
	return frame, nil
}

// Unpack extracts command and payload from a complete frame after
// validating structure and checksum.
func (p *PURPackager) Unpack(frame []byte) (Command, []byte, error) {
	var cmd Command
	if err := p.ValidateFrame(frame); err != nil {
		return cmd, nil, err
	}
	cmd = Command{frame[4], frame[5]}
	payloadLen := int(frame[7])
	if payloadLen == 0 {
		return cmd, nil, nil
	}
	payload := make([]byte, payloadLen)
	copy(payload, frame[9:9+payloadLen])
	return cmd, payload, nil
}

// VerifyChecksum verifies the trailing checksum of a complete frame.
func (p *PURPackager) VerifyChecksum(frame []byte) bool {
	if len(frame) < MinFrameSize {
		return false
	}
	return ChecksumValid(frame)
}

// ValidateFrame performs comprehensive frame validation without extracting
// the payload.
func (p *PURPackager) ValidateFrame(frame []byte) error {
	if len(frame) < MinFrameSize {
		return fmt.Errorf("frame too short: %d bytes (minimum %d)",
			len(frame), MinFrameSize)
	}
	if !bytes.HasPrefix(frame, syncMarker) {
		return fmt.Errorf("wrong frame start: % X", frame[:4])
	}
	if !p.VerifyChecksum(frame) {
		return fmt.Errorf("checksum verification failed")
	}
	if frame[6] != markerLength {
		return fmt.Errorf("missing length marker at offset 6: 0x%02X", frame[6])
	}
	payloadLen := int(frame[7])
	if len(frame) != FrameSize(payloadLen) {
		return fmt.Errorf("frame length mismatch: declared payload %d bytes, frame %d bytes",
			payloadLen, len(frame))
	}
	if payloadLen == 0 {
		if frame[8] != markerChecksum {
			return fmt.Errorf("missing checksum marker: 0x%02X", frame[8])
		}
		return nil
	}
	if frame[8] != markerPayload {
		return fmt.Errorf("missing payload marker: 0x%02X", frame[8])
	}
	if frame[9+payloadLen] != markerChecksum {
		return fmt.Errorf("missing checksum marker: 0x%02X", frame[9+payloadLen])
	}
	return nil
}

// DumpFrame returns a hex dump of the frame with annotations, for
// debugging serial captures.
func (p *PURPackager) DumpFrame(frame []byte) string {
	if len(frame) == 0 {
		return "Empty frame"
	}

	var result string
	result += fmt.Sprintf("Frame Length: %d bytes\n", len(frame))
	result += fmt.Sprintf("Hex: % X\n", frame)

	if len(frame) >= 6 && bytes.HasPrefix(frame, syncMarker) {
		cmd := Command{frame[4], frame[5]}
		result += fmt.Sprintf("Command: %s", cmd)
		if cmd.IsInterrupt() {
			result += " [Interrupt]"
		}
		result += "\n"
	} else {
		result += "Sync: not found\n"
	}

	if len(frame) >= 8 {
		result += fmt.Sprintf("Declared Payload: %d bytes\n", frame[7])
	}

	if len(frame) >= MinFrameSize {
		stored := frame[len(frame)-1]
		calculated := Checksum(frame[:len(frame)-1])
		result += fmt.Sprintf("Checksum Stored: 0x%02X\n", stored)
		result += fmt.Sprintf("Checksum Calculated: 0x%02X\n", calculated)
		result += fmt.Sprintf("Checksum Valid: %t\n", stored == calculated)
	}

	return result
}
