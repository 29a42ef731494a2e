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
)

// Encoding is the tag backscatter link encoding.
type Encoding byte

const (
	EncodingFM0 Encoding = 0x00
	EncodingM2  Encoding = 0x01
	EncodingM4  Encoding = 0x02
	EncodingM8  Encoding = 0x03
)

var encodingNames = map[Encoding]string{
	EncodingFM0: "FM0",
	EncodingM2:  "M2",
	EncodingM4:  "M4",
	EncodingM8:  "M8",
}

func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Encoding(0x%02X)", byte(e))
}

// ParseEncoding converts an encoding name ("FM0", "M2", "M4", "M8") to its
// wire value.
func ParseEncoding(name string) (Encoding, error) {
	for enc, n := range encodingNames {
		if n == name {
			return enc, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown encoding %q", ErrInvalidConfig, name)
}

// Settings is the host-side cache of the reader's RF configuration. It is
// owned by the Reader and mutated only when the device acknowledges a set
// operation; a rejected or timed-out set leaves it untouched. The reader
// hardware falls back to its power-on defaults after a power cycle, so a
// fresh Reader always starts from an explicit assumed state.
type Settings struct {
	FrequenciesKHz []uint32 // hop set, order as sent to the firmware
	BLFKHz         int      // backscatter link frequency
	Encoding       Encoding // tag encoding
	Session        uint8    // inventory session, 0..3
}

// Clone returns a deep copy so cached state cannot be mutated through a
// returned value.
func (s Settings) Clone() Settings {
	out := s
	out.FrequenciesKHz = append([]uint32(nil), s.FrequenciesKHz...)
	return out
}

// DefaultSettings returns the reader's documented power-on defaults:
// random hopping across the ETSI channel set, 160 KHz BLF, M2 encoding,
// session 1.
func DefaultSettings() Settings {
	return Settings{
		FrequenciesKHz: []uint32{865700, 866300, 866900, 867500},
		BLFKHz:         160,
		Encoding:       EncodingM2,
		Session:        1,
	}
}

// Tag is one tag observation from an inventory. Duplicate observations of
// the same physical tag are preserved; callers decide deduplication.
type Tag struct {
	EPC  []byte // Electronic Product Code identifier bytes
	RSSI int8   // backscatter signal strength, dBm
}

func (t Tag) String() string {
	return fmt.Sprintf("EPC=%X RSSI=%d", t.EPC, t.RSSI)
}

// FrameWriter abstracts the byte-level link the Reader drives. Implemented
// by FrameTransporter for real serial ports and by scripted transports in
// tests.
type FrameWriter interface {
	WriteRaw(data []byte) error
	ReadRaw(ctx context.Context, maxLen int) ([]byte, error)
	Close() error
}

// ReaderApi defines the operations of an RFE protocol reader session.
type ReaderApi interface {
	SetLogger(io.Writer) // SetLogger sets the logger for the session

	// Reader information
	SerialNumber(ctx context.Context) (string, error)
	ReaderType(ctx context.Context) (string, error)
	AntennaCount(ctx context.Context) (int, error)

	// RF settings; setters update the cache only on device acknowledge
	Frequencies(ctx context.Context) ([]uint32, error)
	SetFrequencies(ctx context.Context, khz []uint32) error
	BLF(ctx context.Context) (int, error)
	SetBLF(ctx context.Context, khz int) error
	Encoding(ctx context.Context) (Encoding, error)
	SetEncoding(ctx context.Context, enc Encoding) error
	Session(ctx context.Context) (uint8, error)
	SetSession(ctx context.Context, session uint8) error
	Attenuation(ctx context.Context) (int, error)
	SetAttenuation(ctx context.Context, db int) error
	Sensitivity(ctx context.Context) (int, error)
	SetSensitivity(ctx context.Context, dbm int) error
	ModulationDepth(ctx context.Context) (uint8, error)
	SetModulationDepth(ctx context.Context, percent uint8) error

	// Device control
	EnableOutput(ctx context.Context, on bool) error
	SaveSettingsPermanent(ctx context.Context) error
	SetHeartBeat(ctx context.Context, intervalMs uint16) error

	// Tag operations
	SingleInventory(ctx context.Context) ([]Tag, error)
	StartCyclicInventory(ctx context.Context, onTags OnTagsFunc, onError OnErrorFunc) error
	StopCyclicInventory(ctx context.Context) error

	// Cached state and diagnostics
	CachedSettings() Settings
	CorruptFrames() uint64

	Close() error
}
