package rfe

import (
	"bytes"
	"testing"
)

// assertBytesEqual checks if two byte slices are equal.
func assertBytesEqual(t *testing.T, expected []byte, actual []byte) {
	t.Helper()
	if !bytes.Equal(expected, actual) {
		t.Errorf("Expected % X, but got % X", expected, actual)
	}
}

// assertTagsEqual checks if two tag sequences are equal, order included.
func assertTagsEqual(t *testing.T, expected []Tag, actual []Tag) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Errorf("Expected %d tags, but got %d", len(expected), len(actual))
		return
	}
	for i := range expected {
		if !bytes.Equal(expected[i].EPC, actual[i].EPC) || expected[i].RSSI != actual[i].RSSI {
			t.Errorf("Tag %d: expected %v, but got %v", i, expected[i], actual[i])
		}
	}
}
