package fec

import (
	"fmt"

	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/ddritzenhoff/qram/internal/wire"
)

// group is a run of consecutive blocks protected by the same repair symbols.
type group struct {
	id    protocol.GroupID
	first protocol.BlockID
	// k is the number of source blocks in the group. Only the last group of a transfer may have fewer than GroupSize.
	k int
	// r is the number of repair symbols generated for the group.
	r         int
	blockSize int

	idToSource  map[protocol.BlockID][]byte
	pidToRepair map[protocol.ParityID][]byte

	// isProcessed is set once all source blocks of the group are known, either received or recovered.
	isProcessed bool
}

func newGroup(h *wire.Header, id protocol.GroupID) *group {
	first, k := h.GroupBounds(id)
	return &group{
		id:          id,
		first:       first,
		k:           k,
		r:           h.RepairPerGroup,
		blockSize:   int(h.BlockSize),
		idToSource:  make(map[protocol.BlockID][]byte, k),
		pidToRepair: make(map[protocol.ParityID][]byte),
	}
}

func (g *group) last() protocol.BlockID {
	return g.first + protocol.BlockID(g.k) - 1
}

// addSource adds a source block to the group. It reports whether the block was new.
func (g *group) addSource(id protocol.BlockID, payload []byte) (bool, error) {
	if id < g.first || id > g.last() {
		return false, fmt.Errorf("source block was provided to the wrong group. Expecting a block within [%d, %d] and got %d", g.first, g.last(), id)
	}
	if len(payload) != g.blockSize {
		return false, fmt.Errorf("source block %d has %d bytes, expected %d", id, len(payload), g.blockSize)
	}
	if _, exists := g.idToSource[id]; exists {
		return false, nil
	}
	g.idToSource[id] = payload
	return true, nil
}

// addRepair adds a repair symbol to the group. It reports whether the symbol was new.
func (g *group) addRepair(pid protocol.ParityID, payload []byte) (bool, error) {
	if int(pid) >= g.r {
		return false, fmt.Errorf("parity id %d out of range for group %d with %d repair symbols", pid, g.id, g.r)
	}
	if len(payload) != g.blockSize {
		return false, fmt.Errorf("repair symbol %d has %d bytes, expected %d", pid, len(payload), g.blockSize)
	}
	if _, exists := g.pidToRepair[pid]; exists {
		return false, nil
	}
	g.pidToRepair[pid] = payload
	return true, nil
}

// isRecoverable indicates whether the group holds enough source and repair symbols to rebuild its missing source blocks.
func (g *group) isRecoverable() bool {
	return len(g.idToSource)+len(g.pidToRepair) >= g.k
}

// isComplete indicates whether the group holds all of its source blocks.
func (g *group) isComplete() bool {
	return len(g.idToSource) == g.k
}

// missing lists the source blocks the group doesn't hold yet, in order.
func (g *group) missing() []protocol.BlockID {
	var ids []protocol.BlockID
	for i := 0; i < g.k; i++ {
		id := g.first + protocol.BlockID(i)
		if _, exists := g.idToSource[id]; !exists {
			ids = append(ids, id)
		}
	}
	return ids
}
