package rfe

import (
	"bytes"
	"testing"
)

func mustPack(t *testing.T, cmd Command, payload []byte) []byte {
	t.Helper()
	frame, err := NewPURPackager().Pack(cmd, payload)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	return frame
}

func TestDecoderSingleFrame(t *testing.T) {
	d := NewFrameDecoder()
	raw := mustPack(t, CmdGetAntennaCount, []byte{0x00, 0x02})

	frames := d.Feed(raw)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Cmd != CmdGetAntennaCount {
		t.Errorf("wrong command: %s", frames[0].Cmd)
	}
	assertBytesEqual(t, []byte{0x00, 0x02}, frames[0].Payload)
	assertBytesEqual(t, raw, frames[0].Raw)
	if d.Pending() != 0 {
		t.Errorf("expected empty buffer, %d bytes pending", d.Pending())
	}
}

func TestDecoderChunkingInvariance(t *testing.T) {
	// Splitting a stream of frames at arbitrary chunk boundaries must
	// yield the same frames in the same order as feeding it whole.
	var stream []byte
	stream = append(stream, mustPack(t, CmdGetSerialNumber, []byte{0x00, 'A', 'B', 'C'})...)
	stream = append(stream, mustPack(t, CmdInventorySingle, []byte{0x00, 0x00, 0x00})...)
	stream = append(stream, mustPack(t, CmdSetParam, []byte{0x00})...)

	whole := NewFrameDecoder().Feed(stream)
	if len(whole) != 3 {
		t.Fatalf("expected 3 frames from whole stream, got %d", len(whole))
	}

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		d := NewFrameDecoder()
		var frames []*Frame
		for start := 0; start < len(stream); start += chunkSize {
			end := start + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			frames = append(frames, d.Feed(stream[start:end])...)
		}
		if len(frames) != len(whole) {
			t.Fatalf("chunk size %d: expected %d frames, got %d", chunkSize, len(whole), len(frames))
		}
		for i := range frames {
			if frames[i].Cmd != whole[i].Cmd || !bytes.Equal(frames[i].Payload, whole[i].Payload) {
				t.Errorf("chunk size %d: frame %d differs", chunkSize, i)
			}
		}
		if d.CorruptFrames() != 0 {
			t.Errorf("chunk size %d: unexpected corrupt frames: %d", chunkSize, d.CorruptFrames())
		}
	}
}

func TestDecoderResynchronizesAfterCorruptFrame(t *testing.T) {
	// A valid frame with one interior byte flipped, followed by a fully
	// valid frame, yields exactly the second frame and one corrupt
	// frame diagnostic.
	corrupted := mustPack(t, CmdGetFrequency, []byte{0x00, 0x01, 0x04, 0x04, 0x0D, 0x35, 0x44})
	corrupted[10] ^= 0x20
	valid := mustPack(t, CmdGetAntennaCount, []byte{0x00, 0x02})

	d := NewFrameDecoder()
	frames := d.Feed(append(corrupted, valid...))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Cmd != CmdGetAntennaCount {
		t.Errorf("wrong surviving frame: %s", frames[0].Cmd)
	}
	if d.CorruptFrames() != 1 {
		t.Errorf("expected 1 corrupt frame, got %d", d.CorruptFrames())
	}
}

func TestDecoderSkipsLeadingNoise(t *testing.T) {
	d := NewFrameDecoder()
	raw := mustPack(t, CmdSetAntennaPower, []byte{0x00})
	noise := []byte{0x00, 0xFF, 'R', 'F', 0x13}

	frames := d.Feed(append(noise, raw...))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after noise, got %d", len(frames))
	}
	if frames[0].Cmd != CmdSetAntennaPower {
		t.Errorf("wrong command: %s", frames[0].Cmd)
	}
}

func TestDecoderRetainsPartialFrame(t *testing.T) {
	d := NewFrameDecoder()
	raw := mustPack(t, CmdGetParam, []byte{0x00, 0x01, 0x02})

	if frames := d.Feed(raw[:7]); len(frames) != 0 {
		t.Fatalf("expected no frames from partial feed, got %d", len(frames))
	}
	if d.Pending() == 0 {
		t.Error("expected pending bytes after partial feed")
	}
	frames := d.Feed(raw[7:])
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after completion, got %d", len(frames))
	}
	assertBytesEqual(t, []byte{0x00, 0x01, 0x02}, frames[0].Payload)
}

func TestDecoderReset(t *testing.T) {
	d := NewFrameDecoder()
	raw := mustPack(t, CmdGetParam, []byte{0x00})
	d.Feed(raw[:5])
	d.Reset()
	if d.Pending() != 0 {
		t.Errorf("expected empty buffer after reset, %d pending", d.Pending())
	}
	// The tail of the discarded frame must not poison the next one.
	frames := d.Feed(mustPack(t, CmdGetAntennaCount, nil))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after reset, got %d", len(frames))
	}
}
