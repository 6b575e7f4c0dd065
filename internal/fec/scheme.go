package fec

import (
	"fmt"

	"github.com/ddritzenhoff/qram/internal/protocol"
)

type BlockFECScheme interface {
	// repairSymbols generates the repair symbols of the group. An error is returned if the group is not complete.
	repairSymbols(g *group) ([][]byte, error)
	// recoverSymbols reconstructs the missing source blocks of the group and stores them in it. An error is returned if there aren't enough present symbols to repair the missing ones.
	recoverSymbols(g *group) error
}

func newScheme(id protocol.FECSchemeID) (BlockFECScheme, error) {
	switch id {
	case protocol.XORFECScheme:
		return &xorScheme{}, nil
	case protocol.ReedSolomonFECScheme:
		return newReedSolomonScheme(), nil
	default:
		return nil, fmt.Errorf("unknown FEC scheme: %d", id)
	}
}
