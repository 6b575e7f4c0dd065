package fec

import (
	"fmt"

	"github.com/ddritzenhoff/qram/internal/protocol"
)

// xorScheme protects a group with a single parity symbol, which repairs at most one missing block.
type xorScheme struct{}

func (s *xorScheme) repairSymbols(g *group) ([][]byte, error) {
	if g.r != 1 {
		return nil, fmt.Errorf("xor only supports a (k+1,k) scheme. provided (%d, %d)", g.k+g.r, g.k)
	}
	if !g.isComplete() {
		return nil, fmt.Errorf("expecting %d source blocks. provided %d", g.k, len(g.idToSource))
	}

	xorSoFar := make([]byte, g.blockSize)
	for _, payload := range g.idToSource {
		xor(xorSoFar, payload)
	}
	return [][]byte{xorSoFar}, nil
}

func (s *xorScheme) recoverSymbols(g *group) error {
	if !g.isRecoverable() {
		return fmt.Errorf("not enough source and/or repair symbols to recover the remaining source blocks. %d source blocks and %d repair symbols in a (%d, %d) scheme", len(g.idToSource), len(g.pidToRepair), g.k+g.r, g.k)
	}
	missing := g.missing()
	if len(missing) == 0 {
		return nil
	}
	if len(missing) > 1 {
		return fmt.Errorf("xor can recover a single missing block, %d are missing", len(missing))
	}
	parity, ok := g.pidToRepair[protocol.ParityID(0)]
	if !ok {
		return fmt.Errorf("group %d has no parity symbol", g.id)
	}

	recovered := make([]byte, g.blockSize)
	xor(recovered, parity)
	for _, payload := range g.idToSource {
		xor(recovered, payload)
	}
	g.idToSource[missing[0]] = recovered
	return nil
}

func xor(xorSoFar []byte, data []byte) {
	for i := 0; i < len(data); i++ {
		xorSoFar[i] ^= data[i]
	}
}
