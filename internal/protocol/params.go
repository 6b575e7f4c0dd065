package protocol

import "fmt"

// Resistance is the error correction tier requested for symbol rendering.
type Resistance uint8

const (
	ResistanceDefault Resistance = iota
	ResistanceHigh
)

func (r Resistance) String() string {
	switch r {
	case ResistanceHigh:
		return "H"
	default:
		return "default"
	}
}

func ParseResistance(s string) (Resistance, error) {
	switch s {
	case "", "default", "M", "m", "L", "l":
		return ResistanceDefault, nil
	case "H", "h", "high":
		return ResistanceHigh, nil
	default:
		return ResistanceDefault, fmt.Errorf("unknown resistance level: %q", s)
	}
}

const (
	// MaxBlockSize is the largest block size the symbol version policy knows about.
	MaxBlockSize ByteCount = 400
	// DefaultBlockSize is used when no block size is configured.
	DefaultBlockSize ByteCount = 400
	// DefaultPayloadSize is the size of the random payload generated when none is supplied.
	DefaultPayloadSize ByteCount = 1024

	// DefaultMaxBlocksPerPacket bounds how many blocks a single repair packet protects.
	DefaultMaxBlocksPerPacket = 50
	// MaxBlocksPerPacket keeps data+parity shards of a group within what the Reed-Solomon coder accepts.
	MaxBlocksPerPacket = 128

	// DefaultFPS is the fixed frame rate used when none is requested.
	DefaultFPS = 15
	// MaxAutoFPS caps the automatically derived frame rate.
	MaxAutoFPS = 30

	// DefaultRepairRatio is the share of repair symbols generated per group for Reed-Solomon.
	DefaultRepairRatio = 0.5

	// DefaultRefreshRate is the display refresh rate assumed when scanning a camera feed.
	DefaultRefreshRate = 60

	// DigestLen is the length of the payload digest carried in every packet.
	DigestLen = 8
)
