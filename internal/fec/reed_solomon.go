package fec

import (
	"fmt"

	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/klauspost/reedsolomon"
)

type shape struct{ k, r int }

// reedSolomonScheme keeps one coder per group shape, because the last group of a transfer may be smaller than the others.
// It is not safe for concurrent use.
type reedSolomonScheme struct {
	encoders map[shape]reedsolomon.Encoder
}

func newReedSolomonScheme() *reedSolomonScheme {
	return &reedSolomonScheme{encoders: make(map[shape]reedsolomon.Encoder)}
}

func (s *reedSolomonScheme) encoder(k, r int) (reedsolomon.Encoder, error) {
	if enc, ok := s.encoders[shape{k, r}]; ok {
		return enc, nil
	}
	enc, err := reedsolomon.New(k, r)
	if err != nil {
		return nil, err
	}
	s.encoders[shape{k, r}] = enc
	return enc, nil
}

// repairSymbols generates repair symbols for the group. An error is returned if the group is not full with source blocks.
func (s *reedSolomonScheme) repairSymbols(g *group) ([][]byte, error) {
	if !g.isComplete() {
		return nil, fmt.Errorf("group does not have enough source blocks to generate repair symbols")
	}
	enc, err := s.encoder(g.k, g.r)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, g.k+g.r)
	for i := 0; i < g.k; i++ {
		shards[i] = g.idToSource[g.first+protocol.BlockID(i)]
	}
	for i := 0; i < g.r; i++ {
		shards[g.k+i] = make([]byte, g.blockSize)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("unable to make parity shards: %w", err)
	}
	return shards[g.k:], nil
}

// recoverSymbols reconstructs the missing source blocks of the group. An error is returned if there aren't enough present symbols to repair the missing ones.
func (s *reedSolomonScheme) recoverSymbols(g *group) error {
	if !g.isRecoverable() {
		return fmt.Errorf("not enough present symbols to repair the missing ones")
	}
	if g.isComplete() {
		// nothing to recover
		return nil
	}
	enc, err := s.encoder(g.k, g.r)
	if err != nil {
		return err
	}

	shards := make([][]byte, g.k+g.r)
	for i := 0; i < g.k; i++ {
		shards[i] = g.idToSource[g.first+protocol.BlockID(i)]
	}
	for pid, payload := range g.pidToRepair {
		shards[g.k+int(pid)] = payload
	}

	if err := enc.ReconstructData(shards); err != nil {
		return err
	}
	for _, id := range g.missing() {
		g.idToSource[id] = shards[id-g.first]
	}
	return nil
}
