package qram

import (
	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config contains all configuration data needed for a qram session.
// The zero value of every field selects its default.
type Config struct {
	// MaxBlocksPerPacket bounds how many blocks a single repair packet protects.
	// Defaults to 50.
	MaxBlocksPerPacket int
	// FECScheme selects the built-in block engine's scheme. Defaults to Reed-Solomon.
	FECScheme FECSchemeID
	// RepairRatio is the number of Reed-Solomon repair packets per group relative to the group size. Defaults to 0.5.
	RepairRatio float64
	// BlockEngine replaces the built-in block engine.
	BlockEngine BlockEngine
	// RefreshRate is the rate, in Hz, at which camera frames are captured. Defaults to 60.
	RefreshRate int
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
	Tracer Tracer
	// OnProgress is called with every progress snapshot of a receive session, in ingestion order.
	// It runs on the scan loop, which waits for it to return.
	OnProgress func(ProgressSnapshot)
}

func validateConfig(config *Config) error {
	if config == nil {
		return nil
	}
	if config.MaxBlocksPerPacket < 0 || config.MaxBlocksPerPacket > protocol.MaxBlocksPerPacket {
		return &ConfigError{Field: "max blocks per packet", Value: config.MaxBlocksPerPacket, Reason: "out of range"}
	}
	if config.RepairRatio < 0 {
		return &ConfigError{Field: "repair ratio", Value: config.RepairRatio, Reason: "must not be negative"}
	}
	if config.RefreshRate < 0 {
		return &ConfigError{Field: "refresh rate", Value: config.RefreshRate, Reason: "must not be negative"}
	}
	switch config.FECScheme {
	case 0, protocol.ReedSolomonFECScheme, protocol.XORFECScheme:
	default:
		return &ConfigError{Field: "FEC scheme", Value: config.FECScheme, Reason: "unknown"}
	}
	return nil
}

// populateConfig populates fields in the config that are not set, using default values.
func populateConfig(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}
	maxBlocksPerPacket := config.MaxBlocksPerPacket
	if maxBlocksPerPacket == 0 {
		maxBlocksPerPacket = protocol.DefaultMaxBlocksPerPacket
	}
	scheme := config.FECScheme
	if scheme == 0 {
		scheme = protocol.ReedSolomonFECScheme
	}
	repairRatio := config.RepairRatio
	if repairRatio == 0 {
		repairRatio = protocol.DefaultRepairRatio
	}
	engine := config.BlockEngine
	if engine == nil {
		engine = NewBlockEngine(scheme, repairRatio)
	}
	refreshRate := config.RefreshRate
	if refreshRate == 0 {
		refreshRate = protocol.DefaultRefreshRate
	}
	logger := config.Logger
	if logger == nil {
		logger = &log.Logger
	}
	return &Config{
		MaxBlocksPerPacket: maxBlocksPerPacket,
		FECScheme:          scheme,
		RepairRatio:        repairRatio,
		BlockEngine:        engine,
		RefreshRate:        refreshRate,
		Logger:             logger,
		Tracer:             config.Tracer,
		OnProgress:         config.OnProgress,
	}
}
