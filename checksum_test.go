package rfe

import "testing"

func TestChecksum(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected byte
	}{
		{data: []byte{}, expected: 0x00},
		{data: []byte{0x5A}, expected: 0x5A},
		{data: []byte{0xFF, 0xFF}, expected: 0x00},
		{data: []byte{'R', 'F', 'E'}, expected: 0x51},
		{data: []byte{0x52, 0x46, 0x45, 0x01, 0x01, 0x10, 0x02, 0x00, 0x04}, expected: 0x47},
	}

	for _, tc := range testCases {
		sum := Checksum(tc.data)
		if sum != tc.expected {
			t.Errorf("Checksum(% X) returned incorrect value: got %#02x, expected %#02x", tc.data, sum, tc.expected)
		}
	}
}

func TestChecksumValid(t *testing.T) {
	// A complete frame XORs to zero.
	frame := []byte{0x52, 0x46, 0x45, 0x01, 0x01, 0x10, 0x02, 0x00, 0x04, 0x47}
	if !ChecksumValid(frame) {
		t.Errorf("expected frame % X to be checksum-valid", frame)
	}

	corrupted := append([]byte(nil), frame...)
	corrupted[5] ^= 0x01
	if ChecksumValid(corrupted) {
		t.Errorf("expected corrupted frame % X to fail checksum", corrupted)
	}

	if ChecksumValid(nil) {
		t.Error("expected empty input to fail checksum")
	}
}
