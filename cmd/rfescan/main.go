// Command rfescan applies RF settings from a TOML config to an RFE
// protocol UHF reader on a serial port and runs a single inventory,
// printing every tag observation.
//
// Usage:
//
//	rfescan [-config rfescan.toml] [-v]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	rfe "github.com/hootrhino/gorfe"
)

// rfescan config.toml key mapping.
type fileConfig struct {
	Port           string   `toml:"port"`
	BaudRate       int      `toml:"baud_rate"`
	TimeoutMs      int      `toml:"timeout_ms"`
	ScanTimeoutMs  int      `toml:"scan_timeout_ms"`
	FrequenciesKHz []uint32 `toml:"frequencies_khz"`
	BLFKHz         int      `toml:"blf_khz"`
	Encoding       string   `toml:"encoding"`
	Session        int      `toml:"session"`
}

func loadConfig(path string) (fileConfig, error) {
	cfg := fileConfig{
		Port:     "/dev/ttyUSB0",
		BaudRate: 9600,
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if cfg.Port == "" {
		return cfg, fmt.Errorf("load config: port is required")
	}
	return cfg, nil
}

func run() error {
	configPath := flag.String("config", "rfescan.toml", "path to TOML config")
	verbose := flag.Bool("v", false, "log serial traffic")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	port, err := rfe.OpenSerial(cfg.Port, cfg.BaudRate, 2*time.Second)
	if err != nil {
		return err
	}

	readerCfg := rfe.DefaultReaderConfig()
	if cfg.TimeoutMs > 0 {
		readerCfg.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	if cfg.ScanTimeoutMs > 0 {
		readerCfg.ScanTimeout = time.Duration(cfg.ScanTimeoutMs) * time.Millisecond
	}

	reader := rfe.NewReader(port, rfe.DefaultSettings(), readerCfg)
	defer reader.Close()
	if *verbose {
		reader.SetLogger(rfe.NewSimpleLogger(os.Stdout, rfe.LevelDebug, "rfescan"))
	}

	ctx := context.Background()

	if serial, err := reader.SerialNumber(ctx); err == nil {
		fmt.Printf("Reader serial number: %s\n", serial)
	}
	if count, err := reader.AntennaCount(ctx); err == nil {
		fmt.Printf("Antennas: %d\n", count)
	}

	if len(cfg.FrequenciesKHz) > 0 {
		if err := reader.SetFrequencies(ctx, cfg.FrequenciesKHz); err != nil {
			return fmt.Errorf("set frequencies: %w", err)
		}
	}
	if cfg.BLFKHz > 0 {
		if err := reader.SetBLF(ctx, cfg.BLFKHz); err != nil {
			return fmt.Errorf("set BLF: %w", err)
		}
	}
	if cfg.Encoding != "" {
		enc, err := rfe.ParseEncoding(cfg.Encoding)
		if err != nil {
			return err
		}
		if err := reader.SetEncoding(ctx, enc); err != nil {
			return fmt.Errorf("set encoding: %w", err)
		}
	}
	if cfg.Session > 0 {
		if err := reader.SetSession(ctx, uint8(cfg.Session)); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
	}

	tags, err := reader.SingleInventory(ctx)
	if err != nil {
		return fmt.Errorf("inventory: %w", err)
	}
	fmt.Printf("%d tag observations\n", len(tags))
	for _, tag := range tags {
		fmt.Printf("  %s\n", tag)
	}
	if corrupt := reader.CorruptFrames(); corrupt > 0 {
		fmt.Printf("%d corrupt frames dropped\n", corrupt)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rfescan: %v\n", err)
		os.Exit(1)
	}
}
