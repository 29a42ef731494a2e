package rfe

import "time"

// ReaderConfig holds tuning parameters for a reader session.
type ReaderConfig struct {
	Timeout      time.Duration // per-command response timeout
	ScanTimeout  time.Duration // overall budget for one inventory scan
	WriteTimeout time.Duration // transport write budget
	MaxFrameSize int           // largest chunk requested per transport read
}

// DefaultReaderConfig returns default configuration. Scans get a larger
// budget than settings round trips because a populated field can spread a
// report across many frames.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Timeout:      500 * time.Millisecond,
		ScanTimeout:  5 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaxFrameSize: MaxFrameSize,
	}
}

// withDefaults fills zero fields with the default values.
func (c ReaderConfig) withDefaults() ReaderConfig {
	def := DefaultReaderConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = def.ScanTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	return c
}
