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
	"sync/atomic"
)

// FrameDecoder reassembles protocol frames from a serial byte stream that
// delivers data in arbitrary chunk sizes. Incomplete frames are retained
// until the next Feed; frames that fail structural or checksum validation
// are dropped and counted, and decoding resynchronizes on the next sync
// marker so noise never desynchronizes the stream permanently.
//
// FrameDecoder is not safe for concurrent use; the Reader feeds it from a
// single read loop.
type FrameDecoder struct {
	packager *PURPackager
	buf      []byte
	corrupt  atomic.Uint64
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{packager: NewPURPackager()}
}

// Feed appends chunk to the internal buffer and extracts as many complete,
// checksum-valid frames as possible, in arrival order.
func (d *FrameDecoder) Feed(chunk []byte) []*Frame {
	d.buf = append(d.buf, chunk...)

	var frames []*Frame
	for {
		i := bytes.Index(d.buf, syncMarker)
		if i < 0 {
			// No frame start in the buffer. Keep only a possible
			// partial sync marker at the tail.
			if len(d.buf) > len(syncMarker)-1 {
				d.buf = append(d.buf[:0], d.buf[len(d.buf)-(len(syncMarker)-1):]...)
			}
			return frames
		}
		if i > 0 {
			// Drop noise before the frame start.
			d.buf = append(d.buf[:0], d.buf[i:]...)
		}

		// Need the header through the length byte to size the frame.
		if len(d.buf) < 8 {
			return frames
		}
		if d.buf[6] != markerLength {
			d.dropCorrupt()
			continue
		}
		size := FrameSize(int(d.buf[7]))
		if len(d.buf) < size {
			// Partial frame, wait for more bytes.
			return frames
		}

		raw := d.buf[:size]
		if !d.packager.VerifyChecksum(raw) {
			// Line noise; resynchronize on the next sync marker.
			d.dropCorrupt()
			continue
		}
		cmd, payload, err := d.packager.Unpack(raw)
		if err != nil {
			d.dropCorrupt()
			continue
		}

		frames = append(frames, &Frame{
			Cmd:     cmd,
			Payload: payload,
			Raw:     append([]byte(nil), raw...),
		})
		d.buf = append(d.buf[:0], d.buf[size:]...)
	}
}

// dropCorrupt records one corrupt frame and advances past the current sync
// marker so the scan resumes at the next one.
func (d *FrameDecoder) dropCorrupt() {
	d.corrupt.Add(1)
	d.buf = append(d.buf[:0], d.buf[1:]...)
}

// CorruptFrames returns the number of frames dropped for structural or
// checksum errors since the decoder was created or reset.
func (d *FrameDecoder) CorruptFrames() uint64 {
	return d.corrupt.Load()
}

// Pending returns the number of buffered bytes awaiting completion.
func (d *FrameDecoder) Pending() int {
	return len(d.buf)
}

// Reset discards the buffered tail and the corrupt frame count.
func (d *FrameDecoder) Reset() {
	d.buf = d.buf[:0]
	d.corrupt.Store(0)
}
