package rfe

import "fmt"

// ETSI EN 302 208 lower band; the reader's legal channel set.
const (
	BandMinKHz uint32 = 865000
	BandMaxKHz uint32 = 868000
)

// MaxHopChannels is the largest hop set a Set-Frequency payload can
// carry: mode and count bytes plus 3 bytes per channel within the
// 255-byte payload limit.
const MaxHopChannels = (MaxPayloadSize - 2) / 3

// ValidateFrequencies checks a frequency hop set against the reader's
// legal band. The order of the list is preserved end to end; the firmware
// hops randomly but validates positions, so the host must not reorder.
func ValidateFrequencies(khz []uint32) error {
	if len(khz) == 0 {
		return fmt.Errorf("%w: frequency list is empty", ErrInvalidConfig)
	}
	if len(khz) > MaxHopChannels {
		return fmt.Errorf("%w: %d hop channels, maximum %d",
			ErrInvalidConfig, len(khz), MaxHopChannels)
	}
	for i, f := range khz {
		if f < BandMinKHz || f > BandMaxKHz {
			return fmt.Errorf("%w: frequency %d KHz at index %d outside band %d-%d KHz",
				ErrInvalidConfig, f, i, BandMinKHz, BandMaxKHz)
		}
	}
	return nil
}

// ValidateBLF checks membership in the enumerated backscatter link
// frequency set.
func ValidateBLF(khz int) error {
	if _, ok := blfCodeFor(khz); !ok {
		return fmt.Errorf("%w: backscatter link frequency %d KHz, valid: %v",
			ErrInvalidConfig, khz, BLFValues())
	}
	return nil
}

// ValidateEncoding checks membership in the tag encoding set.
func ValidateEncoding(enc Encoding) error {
	if _, ok := encodingNames[enc]; !ok {
		return fmt.Errorf("%w: encoding 0x%02X, valid: FM0, M2, M4, M8",
			ErrInvalidConfig, byte(enc))
	}
	return nil
}

// ValidateSession checks the inventory session range 0..3.
func ValidateSession(session uint8) error {
	if session > 3 {
		return fmt.Errorf("%w: session %d, valid: 0-3", ErrInvalidConfig, session)
	}
	return nil
}

// ValidateAttenuation checks the output attenuation range in dB.
func ValidateAttenuation(db int) error {
	if db < 0 || db > 0xFFFF {
		return fmt.Errorf("%w: attenuation %d dB", ErrInvalidConfig, db)
	}
	return nil
}

// ValidateSensitivity checks the receive sensitivity range in dBm.
func ValidateSensitivity(dbm int) error {
	if dbm < -32768 || dbm > 32767 {
		return fmt.Errorf("%w: sensitivity %d dBm", ErrInvalidConfig, dbm)
	}
	return nil
}

// ValidateModulationDepth checks the modulation depth percentage.
func ValidateModulationDepth(percent uint8) error {
	if percent > 100 {
		return fmt.Errorf("%w: modulation depth %d%%, valid: 0-100", ErrInvalidConfig, percent)
	}
	return nil
}
