package fec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/ddritzenhoff/qram/internal/wire"
	"golang.org/x/crypto/blake2b"
)

var ErrEmptyPayload = errors.New("fec: empty payload")

// Params are the encoding parameters chosen by the sender.
type Params struct {
	Scheme    protocol.FECSchemeID
	BlockSize protocol.ByteCount
	// MaxBlocksPerPacket is the largest number of blocks a single repair packet protects.
	MaxBlocksPerPacket int
	// RepairRatio is the number of Reed-Solomon repair symbols per group, relative to the group size. Ignored by XOR.
	RepairRatio float64
}

func (p Params) header(payloadLen int) (wire.Header, error) {
	if p.BlockSize <= 0 {
		return wire.Header{}, fmt.Errorf("fec: invalid block size %d", p.BlockSize)
	}
	if p.MaxBlocksPerPacket <= 0 || p.MaxBlocksPerPacket > protocol.MaxBlocksPerPacket {
		return wire.Header{}, fmt.Errorf("fec: max blocks per packet %d out of range [1, %d]", p.MaxBlocksPerPacket, protocol.MaxBlocksPerPacket)
	}
	h := wire.Header{
		Scheme:     p.Scheme,
		PayloadLen: protocol.ByteCount(payloadLen),
		BlockSize:  p.BlockSize,
		GroupSize:  p.MaxBlocksPerPacket,
	}
	switch p.Scheme {
	case protocol.XORFECScheme:
		h.RepairPerGroup = 1
	case protocol.ReedSolomonFECScheme:
		k := h.TotalBlocks()
		if k > h.GroupSize {
			k = h.GroupSize
		}
		ratio := p.RepairRatio
		if ratio <= 0 {
			ratio = protocol.DefaultRepairRatio
		}
		r := int(math.Ceil(float64(k) * ratio))
		if r < 1 {
			r = 1
		}
		if h.GroupSize+r > 256 {
			r = 256 - h.GroupSize
		}
		h.RepairPerGroup = r
	default:
		return wire.Header{}, fmt.Errorf("fec: unknown FEC scheme: %d", p.Scheme)
	}
	return h, nil
}

func digest(data []byte) [protocol.DigestLen]byte {
	var d [protocol.DigestLen]byte
	h, err := blake2b.New(protocol.DigestLen, nil)
	if err != nil {
		// only fails for sizes outside [1, 64]
		panic(err)
	}
	h.Write(data)
	copy(d[:], h.Sum(nil))
	return d
}

// Encoder turns a payload into an endless, ordered stream of packets.
// Every round emits all source packets in block order, followed by all repair packets in group order.
// An Encoder can't be rewound, construct a new one to start over.
type Encoder struct {
	header    wire.Header
	packets   [][]byte
	numSource int

	mx   sync.Mutex
	next int
	sent uint64
}

func NewEncoder(data []byte, p Params) (*Encoder, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(data) > wire.MaxPayloadLen {
		return nil, fmt.Errorf("fec: payload of %d bytes exceeds the maximum of %d", len(data), wire.MaxPayloadLen)
	}
	h, err := p.header(len(data))
	if err != nil {
		return nil, err
	}
	h.Digest = digest(data)
	scheme, err := newScheme(h.Scheme)
	if err != nil {
		return nil, err
	}

	total := h.TotalBlocks()
	bs := int(h.BlockSize)
	packets := make([][]byte, 0, total+h.NumGroups()*h.RepairPerGroup)
	groups := make([]*group, h.NumGroups())
	for i := 0; i < total; i++ {
		payload := make([]byte, bs)
		copy(payload, data[i*bs:])
		id := protocol.BlockID(i)
		g := groups[h.GroupOf(id)]
		if g == nil {
			g = newGroup(&h, h.GroupOf(id))
			groups[g.id] = g
		}
		if _, err := g.addSource(id, payload); err != nil {
			return nil, err
		}
		f := &wire.SourceFrame{Header: h, BlockID: id, Payload: payload}
		packets = append(packets, f.Append(make([]byte, 0, f.Length())))
	}
	for _, g := range groups {
		repairs, err := scheme.repairSymbols(g)
		if err != nil {
			return nil, err
		}
		for pid, payload := range repairs {
			f := &wire.RepairFrame{Header: h, GroupID: g.id, ParityID: protocol.ParityID(pid), Payload: payload}
			packets = append(packets, f.Append(make([]byte, 0, f.Length())))
		}
	}

	return &Encoder{
		header:    h,
		packets:   packets,
		numSource: total,
	}, nil
}

// NextPacket returns the next packet of the stream. It only fails when ctx is done.
func (e *Encoder) NextPacket(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mx.Lock()
	defer e.mx.Unlock()
	p := e.packets[e.next]
	e.next = (e.next + 1) % len(e.packets)
	e.sent++
	return p, nil
}

// Header returns the parameters repeated in every packet.
func (e *Encoder) Header() wire.Header { return e.header }

func (e *Encoder) TotalBlocks() int { return e.numSource }

// PacketsPerRound is the number of distinct packets, after which the stream repeats.
func (e *Encoder) PacketsPerRound() int { return len(e.packets) }

// Sent is the number of packets handed out so far.
func (e *Encoder) Sent() uint64 {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.sent
}
