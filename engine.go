package qram

import (
	"github.com/ddritzenhoff/qram/internal/fec"
	"github.com/ddritzenhoff/qram/internal/protocol"
)

type fecEngine struct {
	scheme      protocol.FECSchemeID
	repairRatio float64
}

// NewBlockEngine returns the built-in block engine using the given FEC scheme.
func NewBlockEngine(scheme FECSchemeID, repairRatio float64) BlockEngine {
	return &fecEngine{scheme: scheme, repairRatio: repairRatio}
}

func (e *fecEngine) NewEncoder(data []byte, blockSize, maxBlocksPerPacket int) (PacketStream, error) {
	enc, err := fec.NewEncoder(data, fec.Params{
		Scheme:             e.scheme,
		BlockSize:          protocol.ByteCount(blockSize),
		MaxBlocksPerPacket: maxBlocksPerPacket,
		RepairRatio:        e.repairRatio,
	})
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (e *fecEngine) NewDecoder() BlockDecoder {
	return fec.NewDecoder()
}

func (e *fecEngine) IsFatal(err error) bool {
	return fec.IsFatal(err)
}
