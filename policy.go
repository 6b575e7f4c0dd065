package qram

import (
	"github.com/ddritzenhoff/qram/internal/protocol"
)

const (
	// FPSAuto derives the frame rate from the payload and block size.
	FPSAuto = -1
	// DefaultFPS is used when no frame rate is requested.
	DefaultFPS = protocol.DefaultFPS
	// MaxBlockSize is the largest block size a symbol version is known for.
	MaxBlockSize = int(protocol.MaxBlockSize)
	// DefaultBlockSize is used when no block size is requested.
	DefaultBlockSize = int(protocol.DefaultBlockSize)
	// DefaultRefreshRate is the capture rate assumed for camera feeds, in Hz.
	DefaultRefreshRate = protocol.DefaultRefreshRate
)

// versionTable maps block sizes to the QR version able to carry one packet.
// The high resistance tier needs a denser symbol for the same packet.
var versionTable = []struct {
	maxBlockSize int
	version      int
	versionHigh  int
}{
	{maxBlockSize: 10, version: 14, versionHigh: 16},
	{maxBlockSize: 50, version: 16, versionHigh: 18},
	{maxBlockSize: 100, version: 17, versionHigh: 19},
	{maxBlockSize: 200, version: 19, versionHigh: 22},
	{maxBlockSize: 300, version: 22, versionHigh: 25},
	{maxBlockSize: 400, version: 25, versionHigh: 29},
}

// SymbolVersion selects the symbol version for packets of the given block size.
func SymbolVersion(blockSize int, resistance Resistance) (int, error) {
	if blockSize <= 0 {
		return 0, &ConfigError{Field: "block size", Value: blockSize, Reason: "must be positive"}
	}
	for _, e := range versionTable {
		if blockSize > e.maxBlockSize {
			continue
		}
		if resistance == ResistanceHigh {
			return e.versionHigh, nil
		}
		return e.version, nil
	}
	return 0, &ConfigError{Field: "block size", Value: blockSize, Reason: "no symbol version holds blocks larger than 400 bytes"}
}

// FrameRate resolves the requested frame rate. FPSAuto shows about one round of blocks per second, capped at 30 frames per second.
func FrameRate(payloadSize, blockSize, fps int) (int, error) {
	switch {
	case fps == 0:
		return DefaultFPS, nil
	case fps > 0:
		return fps, nil
	case fps != FPSAuto:
		return 0, &ConfigError{Field: "fps", Value: fps, Reason: "must be positive or auto"}
	}
	if blockSize <= 0 {
		return 0, &ConfigError{Field: "block size", Value: blockSize, Reason: "must be positive"}
	}
	rate := (payloadSize + blockSize - 1) / blockSize
	if rate > protocol.MaxAutoFPS {
		rate = protocol.MaxAutoFPS
	}
	if rate < 1 {
		rate = 1
	}
	return rate, nil
}
