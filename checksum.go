package rfe

// Checksum calculates the RFE frame checksum: XOR of all bytes.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// ChecksumValid reports whether a complete frame checksums correctly.
// A well-formed frame XORs to zero because the trailing checksum byte
// cancels the fold over everything before it.
func ChecksumValid(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	return Checksum(frame) == 0
}
