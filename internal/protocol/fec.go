package protocol

import "fmt"

type FECSchemeID byte

const (
	ReedSolomonFECScheme FECSchemeID = 1
	XORFECScheme         FECSchemeID = 2
)

func (f FECSchemeID) String() string {
	switch f {
	case XORFECScheme:
		return "XOR"
	case ReedSolomonFECScheme:
		return "ReedSolomon"
	default:
		return "unknown"
	}
}

// ParseFECScheme maps the names used in configuration files to a scheme.
func ParseFECScheme(s string) (FECSchemeID, error) {
	switch s {
	case "", "rs", "reed-solomon", "ReedSolomon":
		return ReedSolomonFECScheme, nil
	case "xor", "XOR":
		return XORFECScheme, nil
	default:
		return 0, fmt.Errorf("unknown FEC scheme: %q", s)
	}
}

// BlockID identifies one block of the payload. Blocks are numbered from 0.
type BlockID uint32

// GroupID identifies a coding group, a run of consecutive blocks protected by the same repair symbols.
type GroupID uint32

// ParityID identifies a repair symbol within its group.
type ParityID uint16

// ByteCount is a count of bytes.
type ByteCount int
