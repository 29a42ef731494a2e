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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryStreamDeliversInOrder(t *testing.T) {
	stream := NewInventoryStream(16)
	defer stream.Stop()

	var mu sync.Mutex
	var got [][]Tag
	stream.SetOnTags(func(tags []Tag) {
		mu.Lock()
		got = append(got, tags)
		mu.Unlock()
	})
	stream.Start()

	first := []Tag{{EPC: []byte{0x01}, RSSI: -40}}
	second := []Tag{{EPC: []byte{0x02}, RSSI: -50}}
	stream.Push(first)
	stream.Push(second)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])
	mu.Unlock()
}

func TestInventoryStreamPushAfterStopIsNoop(t *testing.T) {
	stream := NewInventoryStream(1)
	delivered := make(chan []Tag, 4)
	stream.SetOnTags(func(tags []Tag) { delivered <- tags })
	stream.Start()
	stream.Stop()

	// Must return immediately instead of blocking on a dead consumer.
	stream.Push([]Tag{{EPC: []byte{0x01}, RSSI: -40}})

	select {
	case tags := <-delivered:
		t.Fatalf("report delivered after stop: %v", tags)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInventoryStreamDropsOnFullBuffer(t *testing.T) {
	// No dispatch goroutine running, so the buffer fills up and the rest
	// must be dropped without blocking the caller.
	stream := NewInventoryStream(2)
	defer stream.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			stream.Push([]Tag{{EPC: []byte{byte(i)}, RSSI: -40}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push blocked on a full buffer")
	}
}

func TestInventoryStreamErrorCallback(t *testing.T) {
	stream := NewInventoryStream(1)
	defer stream.Stop()

	var mu sync.Mutex
	var got error
	stream.SetOnError(func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})

	want := errors.New("link dropped")
	stream.pushError(want)

	mu.Lock()
	assert.Equal(t, want, got)
	mu.Unlock()
}
