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
	"sync/atomic"
	"time"
)

// OnTagsFunc is a callback type for pushing cyclic inventory tag reports.
type OnTagsFunc func([]Tag)

// OnErrorFunc is a callback type for error reporting.
type OnErrorFunc func(error)

// InventoryStream handles asynchronous dispatch of cyclic inventory
// reports to the caller's callbacks, decoupled from the serial read loop
// through a buffered channel.
type InventoryStream struct {
	dataCh  chan []Tag
	stopCh  chan struct{}
	onTags  atomic.Value // holds OnTagsFunc
	onError atomic.Value // holds OnErrorFunc
}

// NewInventoryStream creates an InventoryStream with a given buffer size.
func NewInventoryStream(bufferSize int) *InventoryStream {
	return &InventoryStream{
		dataCh: make(chan []Tag, bufferSize),
		stopCh: make(chan struct{}),
	}
}

// SetOnTags sets the callback for tag report events.
func (s *InventoryStream) SetOnTags(fn OnTagsFunc) {
	s.onTags.Store(fn)
}

// SetOnError sets the callback for error events.
func (s *InventoryStream) SetOnError(fn OnErrorFunc) {
	s.onError.Store(fn)
}

// Start launches the goroutine that dispatches reports to the OnTags
// callback.
func (s *InventoryStream) Start() {
	go func() {
		for {
			select {
			case <-s.stopCh:
				return
			case tags, ok := <-s.dataCh:
				if !ok {
					return
				}
				if cb := s.onTags.Load(); cb != nil {
					cb.(OnTagsFunc)(tags)
				}
			}
		}
	}()
}

// Push sends a tag report to the stream, unless stopped. A full buffer
// drops the report rather than stalling the serial read loop.
func (s *InventoryStream) Push(tags []Tag) {
	select {
	case s.dataCh <- tags:
	case <-s.stopCh:
	default:
	}
}

func (s *InventoryStream) pushError(err error) {
	if cb := s.onError.Load(); cb != nil {
		cb.(OnErrorFunc)(err)
	}
}

// Stop terminates the dispatch goroutine.
func (s *InventoryStream) Stop() {
	close(s.stopCh)
}

// pumpInterval is how often the cyclic inventory pump polls the transport
// between stop checks.
const pumpInterval = 100 * time.Millisecond

// StartCyclicInventory puts the reader into cyclic inventory mode. The
// reader then pushes tag reports continuously; they are delivered to
// onTags in arrival order until StopCyclicInventory or Close. While
// cyclic mode is active every other operation fails with ErrBusy, since
// the read loop belongs to the pump.
func (r *Reader) StartCyclicInventory(ctx context.Context, onTags OnTagsFunc, onError OnErrorFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("%w: session closed", ErrBusy)
	}
	if r.stream != nil {
		return fmt.Errorf("%w: cyclic inventory already running", ErrBusy)
	}

	if err := r.setParam(ctx, ParamReportRSSI, []byte{0x01}); err != nil {
		return fmt.Errorf("rfe: enabling RSSI report: %w", err)
	}
	if _, err := r.checkedExchange(ctx, CmdInventoryCyclic, []byte{0x01}); err != nil {
		return err
	}

	stream := NewInventoryStream(16)
	if onTags != nil {
		stream.SetOnTags(onTags)
	}
	if onError != nil {
		stream.SetOnError(onError)
	}
	stream.Start()

	r.stream = stream
	r.stopPump = make(chan struct{})
	r.pumpDone = make(chan struct{})
	go r.pump(r.stopPump, r.pumpDone)
	return nil
}

// StopCyclicInventory takes the reader out of cyclic inventory mode and
// releases the read loop back to request/response operations.
func (r *Reader) StopCyclicInventory(ctx context.Context) error {
	r.mu.Lock()
	if r.stream == nil {
		r.mu.Unlock()
		return nil
	}
	stop := r.stopPump
	done := r.pumpDone
	r.mu.Unlock()

	// The pump must release the transport before the stop command's
	// response can be awaited.
	close(stop)
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	stream := r.stream
	r.stream = nil
	r.stopPump = nil
	r.pumpDone = nil

	_, err := r.checkedExchange(ctx, CmdInventoryCyclic, []byte{0x00})
	stream.Stop()
	return err
}

// pump owns the transport read loop for the duration of a cyclic
// inventory, dispatching interrupt frames to the stream.
func (r *Reader) pump(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := r.readOnce(pumpInterval); err != nil {
			r.logf("[ERROR] rfe: cyclic inventory read failed: %v", err)
			if stream := r.stream; stream != nil {
				stream.pushError(err)
			}
			return
		}
	}
}
