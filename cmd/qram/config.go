package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ddritzenhoff/qram"
	"github.com/ddritzenhoff/qram/internal/protocol"
)

// fileConfig is the TOML configuration of the qram binary. Flags override it.
type fileConfig struct {
	BlockSize  int    `toml:"block_size"`
	FPS        string `toml:"fps"`
	Resistance string `toml:"resistance"`
	// PayloadSize is the size of the random payload presented when no data is given.
	PayloadSize        int     `toml:"payload_size"`
	Scheme             string  `toml:"fec_scheme"`
	MaxBlocksPerPacket int     `toml:"max_blocks_per_packet"`
	RepairRatio        float64 `toml:"repair_ratio"`
	RefreshRate        int     `toml:"refresh_rate"`
	ModulePixels       int     `toml:"module_pixels"`
	LogLevel           string  `toml:"log_level"`
	Trace              string  `toml:"trace"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		BlockSize:          qram.DefaultBlockSize,
		FPS:                strconv.Itoa(qram.DefaultFPS),
		PayloadSize:        int(protocol.DefaultPayloadSize),
		Scheme:             protocol.ReedSolomonFECScheme.String(),
		MaxBlocksPerPacket: protocol.DefaultMaxBlocksPerPacket,
		RepairRatio:        protocol.DefaultRepairRatio,
		RefreshRate:        qram.DefaultRefreshRate,
		LogLevel:           "info",
	}
}

// loadConfig reads the config file at path on top of the defaults. An empty path only returns the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fileConfig{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := validateConfig(cfg); err != nil {
		return fileConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func validateConfig(cfg fileConfig) error {
	if _, err := cfg.fps(); err != nil {
		return err
	}
	if _, err := protocol.ParseResistance(cfg.Resistance); err != nil {
		return err
	}
	if _, err := protocol.ParseFECScheme(cfg.Scheme); err != nil {
		return err
	}
	if _, err := qram.SymbolVersion(cfg.BlockSize, protocol.ResistanceDefault); err != nil {
		return err
	}
	if cfg.PayloadSize <= 0 {
		return fmt.Errorf("payload_size must be positive, got %d", cfg.PayloadSize)
	}
	return nil
}

// fps parses the frame rate setting, either "auto" or a number of frames per second.
func (c fileConfig) fps() (int, error) {
	s := strings.TrimSpace(c.FPS)
	switch strings.ToLower(s) {
	case "auto":
		return qram.FPSAuto, nil
	case "":
		return 0, nil
	}
	fps, err := strconv.Atoi(s)
	if err != nil || fps <= 0 {
		return 0, fmt.Errorf("fps must be \"auto\" or a positive number, got %q", c.FPS)
	}
	return fps, nil
}

func (c fileConfig) presentParams() (qram.PresentParams, error) {
	fps, err := c.fps()
	if err != nil {
		return qram.PresentParams{}, err
	}
	resistance, err := protocol.ParseResistance(c.Resistance)
	if err != nil {
		return qram.PresentParams{}, err
	}
	return qram.PresentParams{BlockSize: c.BlockSize, FPS: fps, Resistance: resistance}, nil
}

func (c fileConfig) qramConfig() (*qram.Config, error) {
	scheme, err := protocol.ParseFECScheme(c.Scheme)
	if err != nil {
		return nil, err
	}
	return &qram.Config{
		MaxBlocksPerPacket: c.MaxBlocksPerPacket,
		FECScheme:          scheme,
		RepairRatio:        c.RepairRatio,
		RefreshRate:        c.RefreshRate,
	}, nil
}
