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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Reader is a session with one RFE protocol reader over one transport.
// The protocol is strict request/response with no multiplexing, so all
// operations are serialized: a call issued while another is in flight
// blocks until the first completes. Sharing one physical port between two
// Reader instances is unsupported.
type Reader struct {
	logger    atomic.Value // holds loggerSink
	transport FrameWriter
	packager  *PURPackager
	decoder   *FrameDecoder
	config    ReaderConfig

	mu       sync.Mutex // serializes exchanges, guards settings and lifecycle
	settings Settings
	closed   bool

	// Cyclic inventory state, see poller.go.
	stream   *InventoryStream
	stopPump chan struct{}
	pumpDone chan struct{}
}

// NewReader creates a session over an open port (see OpenSerial) and
// caches defaults as the assumed current device state without a round
// trip. The hardware loses its settings on power loss, so the cache is
// only as trustworthy as the supplied defaults; reconnecting means
// creating a new Reader.
func NewReader(port io.ReadWriteCloser, defaults Settings, config ReaderConfig) *Reader {
	config = config.withDefaults()
	return newReader(NewFrameTransporter(port, config.WriteTimeout), defaults, config)
}

// NewReaderWithTransport creates a session over a caller-supplied
// transport. Used by tests and TCP-attached readers.
func NewReaderWithTransport(transport FrameWriter, defaults Settings, config ReaderConfig) *Reader {
	return newReader(transport, defaults, config.withDefaults())
}

func newReader(transport FrameWriter, defaults Settings, config ReaderConfig) *Reader {
	r := &Reader{
		transport: transport,
		packager:  NewPURPackager(),
		decoder:   NewFrameDecoder(),
		config:    config,
		settings:  defaults.Clone(),
	}
	r.SetLogger(NewSimpleLogger(nil, LevelWarning, "rfe"))
	return r
}

// loggerSink wraps the logger for atomic.Value, which needs one concrete
// type across stores.
type loggerSink struct {
	w io.Writer
}

// SetLogger sets the logger for the session. Safe to call while a cyclic
// inventory pump is logging concurrently.
func (r *Reader) SetLogger(logger io.Writer) {
	r.logger.Store(loggerSink{logger})
}

func (r *Reader) logf(format string, args ...interface{}) {
	if sink, ok := r.logger.Load().(loggerSink); ok && sink.w != nil {
		fmt.Fprintf(sink.w, format, args...)
	}
}

// CachedSettings returns a copy of the host-side settings cache.
func (r *Reader) CachedSettings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings.Clone()
}

// CorruptFrames returns the count of frames dropped for checksum or
// structural errors since the session started. Serial noise makes a
// nonzero count normal; a fast-growing one points at a link problem.
func (r *Reader) CorruptFrames() uint64 {
	return r.decoder.CorruptFrames()
}

// Close stops any running cyclic inventory and closes the transport. The
// session cannot be reused afterwards.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	stop := r.stopPump
	done := r.pumpDone
	r.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	r.mu.Lock()
	if r.stream != nil {
		r.stream.Stop()
		r.stream = nil
	}
	r.mu.Unlock()
	return r.transport.Close()
}

// exchange sends one command and blocks until the matching response
// arrives or the timeout elapses. Frames for other commands received in
// the meantime are dispatched (interrupts) or dropped with a log line.
// Caller must hold r.mu.
func (r *Reader) exchange(ctx context.Context, cmd Command, payload []byte) (*Frame, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: session closed", ErrBusy)
	}
	if r.stream != nil {
		return nil, fmt.Errorf("%w: cyclic inventory running", ErrBusy)
	}

	raw, err := r.packager.Pack(cmd, payload)
	if err != nil {
		return nil, err
	}
	r.logf("[DEBUG] rfe: sending %s, payload % X", cmd, payload)
	if err := r.transport.WriteRaw(raw); err != nil {
		return nil, fmt.Errorf("rfe: transport write failed: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	for {
		chunk, err := r.transport.ReadRaw(opCtx, r.config.MaxFrameSize)
		if err != nil {
			if ctx.Err() != nil {
				// Caller-initiated cancel: device state unknown,
				// discard any partially decoded bytes.
				r.decoder.Reset()
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: no response to %s within %v", ErrTimeout, cmd, r.config.Timeout)
			}
			return nil, fmt.Errorf("rfe: transport read failed: %w", err)
		}
		var match *Frame
		for _, frame := range r.decoder.Feed(chunk) {
			switch {
			case frame.Cmd == cmd && match == nil:
				match = frame
			case frame.Cmd.IsInterrupt():
				r.handleInterrupt(frame)
			default:
				r.logf("[WARNING] rfe: dropping unexpected response %s while awaiting %s", frame.Cmd, cmd)
			}
		}
		if match != nil {
			r.logf("[DEBUG] rfe: received %s, payload % X", match.Cmd, match.Payload)
			return match, nil
		}
	}
}

// checkedExchange performs an exchange and validates the status byte that
// leads the response payload. A nonzero status means the firmware
// declined the command.
func (r *Reader) checkedExchange(ctx context.Context, cmd Command, payload []byte) (*Frame, error) {
	frame, err := r.exchange(ctx, cmd, payload)
	if err != nil {
		return nil, err
	}
	if len(frame.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s response carries no status byte", ErrMalformedResponse, cmd)
	}
	if code := frame.Payload[0]; code != StatusOK {
		return nil, &DeviceError{Op: commandNames[cmd], Status: code}
	}
	return frame, nil
}

// setParam writes a device parameter via Set-Param. Caller must hold r.mu.
func (r *Reader) setParam(ctx context.Context, addr uint16, value []byte) error {
	payload := make([]byte, 3+len(value))
	binary.BigEndian.PutUint16(payload[0:2], addr)
	payload[2] = byte(len(value))
	copy(payload[3:], value)
	_, err := r.checkedExchange(ctx, CmdSetParam, payload)
	return err
}

// getParam reads a device parameter via Get-Param. Caller must hold r.mu.
func (r *Reader) getParam(ctx context.Context, addr uint16) ([]byte, error) {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, addr)
	frame, err := r.checkedExchange(ctx, CmdGetParam, payload)
	if err != nil {
		return nil, err
	}
	// Payload: status, value length, value bytes.
	if len(frame.Payload) < 2 {
		return nil, fmt.Errorf("%w: Get-Param response truncated", ErrMalformedResponse)
	}
	size := int(frame.Payload[1])
	if len(frame.Payload) < 2+size {
		return nil, fmt.Errorf("%w: Get-Param declares %d value bytes, %d present",
			ErrMalformedResponse, size, len(frame.Payload)-2)
	}
	return frame.Payload[2 : 2+size], nil
}

// SerialNumber reads the reader's serial number.
func (r *Reader) SerialNumber(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame, err := r.checkedExchange(ctx, CmdGetSerialNumber, nil)
	if err != nil {
		return "", err
	}
	return string(frame.Payload[1:]), nil
}

// ReaderType reads the reader's type designation.
func (r *Reader) ReaderType(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame, err := r.checkedExchange(ctx, CmdGetReaderType, nil)
	if err != nil {
		return "", err
	}
	return string(frame.Payload[1:]), nil
}

// AntennaCount reads the number of antenna ports.
func (r *Reader) AntennaCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame, err := r.checkedExchange(ctx, CmdGetAntennaCount, nil)
	if err != nil {
		return 0, err
	}
	if len(frame.Payload) < 2 {
		return 0, fmt.Errorf("%w: Get-Antenna-Count response truncated", ErrMalformedResponse)
	}
	return int(frame.Payload[1]), nil
}

// Frequencies reads the frequency hop set from the device.
func (r *Reader) Frequencies(ctx context.Context) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame, err := r.checkedExchange(ctx, CmdGetFrequency, nil)
	if err != nil {
		return nil, err
	}
	// Payload: status, mode, max channel count, channel count, then
	// 3-byte KHz values.
	if len(frame.Payload) < 4 {
		return nil, fmt.Errorf("%w: Get-Frequency response truncated", ErrMalformedResponse)
	}
	count := int(frame.Payload[3])
	rest := frame.Payload[4:]
	if len(rest) < count*3 {
		return nil, fmt.Errorf("%w: Get-Frequency declares %d channels, %d bytes present",
			ErrMalformedResponse, count, len(rest))
	}
	freqs := make([]uint32, count)
	for i := 0; i < count; i++ {
		freqs[i] = uint32(rest[3*i])<<16 | uint32(rest[3*i+1])<<8 | uint32(rest[3*i+2])
	}
	return freqs, nil
}

// SetFrequencies applies a frequency hop set in the caller's order. The
// firmware hops randomly across the set. The cache is updated only after
// the device acknowledges.
func (r *Reader) SetFrequencies(ctx context.Context, khz []uint32) error {
	if err := ValidateFrequencies(khz); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Mode 1 = random hopping, then channel count and 3-byte KHz values.
	payload := make([]byte, 2+3*len(khz))
	payload[0] = 0x01
	payload[1] = byte(len(khz))
	for i, f := range khz {
		payload[2+3*i] = byte(f >> 16)
		payload[2+3*i+1] = byte(f >> 8)
		payload[2+3*i+2] = byte(f)
	}
	if _, err := r.checkedExchange(ctx, CmdSetFrequency, payload); err != nil {
		return err
	}
	r.settings.FrequenciesKHz = append([]uint32(nil), khz...)
	return nil
}

// BLF reads the backscatter link frequency in KHz from the device.
func (r *Reader) BLF(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, err := r.getParam(ctx, ParamLinkFrequency)
	if err != nil {
		return 0, err
	}
	if len(value) < 1 {
		return 0, fmt.Errorf("%w: empty link frequency parameter", ErrMalformedResponse)
	}
	khz, ok := blfCodes[value[0]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown link frequency key 0x%02X", ErrMalformedResponse, value[0])
	}
	return khz, nil
}

// SetBLF applies a backscatter link frequency from the enumerated set.
func (r *Reader) SetBLF(ctx context.Context, khz int) error {
	if err := ValidateBLF(khz); err != nil {
		return err
	}
	code, _ := blfCodeFor(khz)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setParam(ctx, ParamLinkFrequency, []byte{code}); err != nil {
		return err
	}
	r.settings.BLFKHz = khz
	return nil
}

// Encoding reads the tag encoding from the device.
func (r *Reader) Encoding(ctx context.Context) (Encoding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, err := r.getParam(ctx, ParamEncoding)
	if err != nil {
		return 0, err
	}
	if len(value) < 1 {
		return 0, fmt.Errorf("%w: empty encoding parameter", ErrMalformedResponse)
	}
	enc := Encoding(value[0])
	if _, ok := encodingNames[enc]; !ok {
		return 0, fmt.Errorf("%w: unknown encoding key 0x%02X", ErrMalformedResponse, value[0])
	}
	return enc, nil
}

// SetEncoding applies a tag encoding.
func (r *Reader) SetEncoding(ctx context.Context, enc Encoding) error {
	if err := ValidateEncoding(enc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setParam(ctx, ParamEncoding, []byte{byte(enc)}); err != nil {
		return err
	}
	r.settings.Encoding = enc
	return nil
}

// Session reads the inventory session from the device.
func (r *Reader) Session(ctx context.Context) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, err := r.getParam(ctx, ParamSession)
	if err != nil {
		return 0, err
	}
	if len(value) < 1 {
		return 0, fmt.Errorf("%w: empty session parameter", ErrMalformedResponse)
	}
	return value[0], nil
}

// SetSession applies the inventory session (0..3).
func (r *Reader) SetSession(ctx context.Context, session uint8) error {
	if err := ValidateSession(session); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setParam(ctx, ParamSession, []byte{session}); err != nil {
		return err
	}
	r.settings.Session = session
	return nil
}

// Attenuation reads the current output attenuation in dB.
func (r *Reader) Attenuation(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame, err := r.checkedExchange(ctx, CmdGetAttenuation, nil)
	if err != nil {
		return 0, err
	}
	// Payload: status, maximum u16, current u16.
	if len(frame.Payload) < 5 {
		return 0, fmt.Errorf("%w: Get-Attenuation response truncated", ErrMalformedResponse)
	}
	return int(binary.BigEndian.Uint16(frame.Payload[3:5])), nil
}

// SetAttenuation applies the output attenuation in dB.
func (r *Reader) SetAttenuation(ctx context.Context, db int) error {
	if err := ValidateAttenuation(db); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(db))
	_, err := r.checkedExchange(ctx, CmdSetAttenuation, payload)
	return err
}

// Sensitivity reads the current receive sensitivity in dBm.
func (r *Reader) Sensitivity(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame, err := r.checkedExchange(ctx, CmdGetSensitivity, nil)
	if err != nil {
		return 0, err
	}
	// Payload: status, maximum i16, minimum i16, current i16.
	if len(frame.Payload) < 7 {
		return 0, fmt.Errorf("%w: Get-Sensitivity response truncated", ErrMalformedResponse)
	}
	return int(int16(binary.BigEndian.Uint16(frame.Payload[5:7]))), nil
}

// SetSensitivity applies the receive sensitivity in dBm.
func (r *Reader) SetSensitivity(ctx context.Context, dbm int) error {
	if err := ValidateSensitivity(dbm); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(int16(dbm)))
	_, err := r.checkedExchange(ctx, CmdSetSensitivity, payload)
	return err
}

// ModulationDepth reads the modulation depth percentage.
func (r *Reader) ModulationDepth(ctx context.Context) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, err := r.getParam(ctx, ParamModulationDepth)
	if err != nil {
		return 0, err
	}
	if len(value) < 1 {
		return 0, fmt.Errorf("%w: empty modulation depth parameter", ErrMalformedResponse)
	}
	return value[0], nil
}

// SetModulationDepth applies the modulation depth percentage.
func (r *Reader) SetModulationDepth(ctx context.Context, percent uint8) error {
	if err := ValidateModulationDepth(percent); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setParam(ctx, ParamModulationDepth, []byte{percent})
}

// EnableOutput switches the antenna output power on or off.
func (r *Reader) EnableOutput(ctx context.Context, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := byte(0)
	if on {
		state = 1
	}
	_, err := r.checkedExchange(ctx, CmdSetAntennaPower, []byte{state})
	return err
}

// SaveSettingsPermanent persists the current device configuration to the
// reader's non-volatile memory, so it survives a power cycle.
func (r *Reader) SaveSettingsPermanent(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.checkedExchange(ctx, CmdSaveSettingsPermanent, nil)
	return err
}

// SetHeartBeat configures the reader's heartbeat interrupt interval in
// milliseconds; zero disables it. Heartbeat interrupts arriving during
// other operations are logged and skipped.
func (r *Reader) SetHeartBeat(ctx context.Context, intervalMs uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, intervalMs)
	_, err := r.checkedExchange(ctx, CmdSetHeartBeat, payload)
	return err
}

// SingleInventory runs one inventory round and returns every tag
// observation in report order, duplicates included. A populated field
// spreads the report across multiple frames; the scan completes once the
// frames account for the reader's declared total, or the scan timeout
// elapses, in which case whatever was collected so far is returned.
// Seeing zero tags is a normal result, not an error.
func (r *Reader) SingleInventory(ctx context.Context) ([]Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: session closed", ErrBusy)
	}
	if r.stream != nil {
		return nil, fmt.Errorf("%w: cyclic inventory running", ErrBusy)
	}

	// Tags shall be reported with RSSI.
	if err := r.setParam(ctx, ParamReportRSSI, []byte{0x01}); err != nil {
		return nil, fmt.Errorf("rfe: enabling RSSI report: %w", err)
	}

	raw, err := r.packager.Pack(CmdInventorySingle, nil)
	if err != nil {
		return nil, err
	}
	if err := r.transport.WriteRaw(raw); err != nil {
		return nil, fmt.Errorf("rfe: transport write failed: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, r.config.ScanTimeout)
	defer cancel()

	var tags []Tag
	collected := 0
	for {
		chunk, err := r.transport.ReadRaw(scanCtx, r.config.MaxFrameSize)
		if err != nil {
			if ctx.Err() != nil {
				r.decoder.Reset()
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Scan budget exhausted; what we have is the result.
				return tags, nil
			}
			return nil, fmt.Errorf("rfe: transport read failed: %w", err)
		}
		for _, frame := range r.decoder.Feed(chunk) {
			if frame.Cmd != CmdInventorySingle {
				if frame.Cmd.IsInterrupt() {
					r.handleInterrupt(frame)
				} else {
					r.logf("[WARNING] rfe: dropping unexpected response %s during inventory", frame.Cmd)
				}
				continue
			}
			report, err := ParseTagReport(frame.Payload)
			if err != nil {
				// Discard this frame's tags, scan continues with
				// subsequent frames.
				r.logf("[WARNING] rfe: %v", err)
				continue
			}
			if report.Status != StatusOK {
				return nil, &DeviceError{Op: commandNames[CmdInventorySingle], Status: report.Status}
			}
			tags = append(tags, report.Tags...)
			collected += len(report.Tags)
			if collected >= report.Total {
				r.logf("[INFO] rfe: %d tags found", len(tags))
				return tags, nil
			}
		}
	}
}

// handleInterrupt dispatches an unsolicited frame. Cyclic inventory
// reports go to the active stream; everything else is logged.
func (r *Reader) handleInterrupt(frame *Frame) {
	switch frame.Cmd {
	case CmdInventoryCyclicInterrupt:
		if r.stream == nil {
			r.logf("[WARNING] rfe: cyclic inventory report with no active stream")
			return
		}
		report, err := ParseTagReport(frame.Payload)
		if err != nil {
			r.stream.pushError(err)
			return
		}
		r.stream.Push(report.Tags)
	case CmdHeartBeatInterrupt:
		r.logf("[DEBUG] rfe: heartbeat")
	default:
		r.logf("[DEBUG] rfe: unhandled interrupt %s", frame.Cmd)
	}
}

// readOnce performs one bounded transport read and dispatches every
// decoded frame as an interrupt. Used by the cyclic inventory pump.
func (r *Reader) readOnce(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	chunk, err := r.transport.ReadRaw(ctx, r.config.MaxFrameSize)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	for _, frame := range r.decoder.Feed(chunk) {
		if frame.Cmd.IsInterrupt() {
			r.handleInterrupt(frame)
		} else {
			r.logf("[WARNING] rfe: dropping unexpected response %s during cyclic inventory", frame.Cmd)
		}
	}
	return nil
}
