package fec

import (
	"github.com/ddritzenhoff/qram/internal/protocol"
	"golang.org/x/exp/slices"
)

// BlockSet is an immutable, sorted set of block ids.
type BlockSet struct {
	ids []protocol.BlockID
}

// NewBlockSet builds a set from ids in any order, dropping duplicates.
func NewBlockSet(ids ...protocol.BlockID) BlockSet {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return BlockSet{ids: slices.Compact(sorted)}
}

func (s BlockSet) Has(id protocol.BlockID) bool {
	_, found := slices.BinarySearch(s.ids, id)
	return found
}

func (s BlockSet) Len() int { return len(s.ids) }

// IDs returns the members in ascending order. The returned slice is a copy.
func (s BlockSet) IDs() []protocol.BlockID { return slices.Clone(s.ids) }

// IsSupersetOf reports whether every member of o is a member of s.
func (s BlockSet) IsSupersetOf(o BlockSet) bool {
	i := 0
	for _, id := range o.ids {
		for i < len(s.ids) && s.ids[i] < id {
			i++
		}
		if i == len(s.ids) || s.ids[i] != id {
			return false
		}
	}
	return true
}

// with returns a set containing the members of s and ids. s is left untouched.
func (s BlockSet) with(ids ...protocol.BlockID) BlockSet {
	if len(ids) == 0 {
		return s
	}
	merged := make([]protocol.BlockID, 0, len(s.ids)+len(ids))
	merged = append(merged, s.ids...)
	merged = append(merged, ids...)
	slices.Sort(merged)
	return BlockSet{ids: slices.Compact(merged)}
}

// Progress is a snapshot of a decoder's reconstruction state.
type Progress struct {
	// ReceivedPackets counts every well-formed packet ingested, duplicates included.
	ReceivedPackets int
	// ReceivedBlocks is the number of blocks known so far, received or recovered.
	ReceivedBlocks int
	// TotalBlocks is zero until the first packet told the decoder the transfer parameters.
	TotalBlocks int
	Blocks      BlockSet
	Done        bool
	// Data is only set once Done is true.
	Data []byte
}
