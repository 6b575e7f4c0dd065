package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/quic-go/quic-go/quicvarint"
)

// MaxPayloadLen bounds the payload length a header may announce, so a garbled header can't make the receiver allocate without limit.
const MaxPayloadLen = 1 << 26

// Header carries the encoding parameters of a transfer. Every packet repeats it, which makes each packet self-describing: a receiver may start with any packet.
type Header struct {
	Scheme         protocol.FECSchemeID
	PayloadLen     protocol.ByteCount
	BlockSize      protocol.ByteCount
	GroupSize      int
	RepairPerGroup int
	Digest         [protocol.DigestLen]byte
}

// TotalBlocks is the number of blocks the payload is cut into.
func (h *Header) TotalBlocks() int {
	if h.BlockSize <= 0 {
		return 0
	}
	return int((h.PayloadLen + h.BlockSize - 1) / h.BlockSize)
}

// NumGroups is the number of coding groups.
func (h *Header) NumGroups() int {
	if h.GroupSize <= 0 {
		return 0
	}
	return (h.TotalBlocks() + h.GroupSize - 1) / h.GroupSize
}

// GroupOf returns the coding group the block belongs to.
func (h *Header) GroupOf(id protocol.BlockID) protocol.GroupID {
	return protocol.GroupID(int(id) / h.GroupSize)
}

// GroupBounds returns the first block of the group and the number of blocks in it. Only the last group may be smaller than GroupSize.
func (h *Header) GroupBounds(g protocol.GroupID) (protocol.BlockID, int) {
	first := int(g) * h.GroupSize
	k := h.GroupSize
	if rest := h.TotalBlocks() - first; rest < k {
		k = rest
	}
	return protocol.BlockID(first), k
}

// Equal reports whether both headers describe the same transfer.
func (h *Header) Equal(o *Header) bool {
	return *h == *o
}

func (h *Header) validate() error {
	switch h.Scheme {
	case protocol.ReedSolomonFECScheme:
	case protocol.XORFECScheme:
		if h.RepairPerGroup != 1 {
			return fmt.Errorf("XOR scheme requires exactly one repair symbol per group, got %d", h.RepairPerGroup)
		}
	default:
		return fmt.Errorf("unknown FEC scheme %d", h.Scheme)
	}
	if h.PayloadLen <= 0 || h.PayloadLen > MaxPayloadLen {
		return fmt.Errorf("payload length %d out of range", h.PayloadLen)
	}
	if h.BlockSize <= 0 {
		return fmt.Errorf("invalid block size %d", h.BlockSize)
	}
	if h.GroupSize <= 0 || h.GroupSize > protocol.MaxBlocksPerPacket {
		return fmt.Errorf("group size %d out of range [1, %d]", h.GroupSize, protocol.MaxBlocksPerPacket)
	}
	if h.RepairPerGroup <= 0 || h.GroupSize+h.RepairPerGroup > 256 {
		return fmt.Errorf("invalid number of repair symbols per group: %d", h.RepairPerGroup)
	}
	return nil
}

func (h *Header) append(b []byte) []byte {
	b = quicvarint.Append(b, uint64(h.Scheme))
	b = quicvarint.Append(b, uint64(h.PayloadLen))
	b = quicvarint.Append(b, uint64(h.BlockSize))
	b = quicvarint.Append(b, uint64(h.GroupSize))
	b = quicvarint.Append(b, uint64(h.RepairPerGroup))
	return append(b, h.Digest[:]...)
}

func (h *Header) length() int {
	return int(quicvarint.Len(uint64(h.Scheme))) +
		int(quicvarint.Len(uint64(h.PayloadLen))) +
		int(quicvarint.Len(uint64(h.BlockSize))) +
		int(quicvarint.Len(uint64(h.GroupSize))) +
		int(quicvarint.Len(uint64(h.RepairPerGroup))) +
		protocol.DigestLen
}

func parseHeader(r *bytes.Reader) (Header, error) {
	var h Header
	scheme, err := quicvarint.Read(r)
	if err != nil {
		return h, err
	}
	if scheme > 0xff {
		return h, fmt.Errorf("invalid FEC scheme %d", scheme)
	}
	h.Scheme = protocol.FECSchemeID(scheme)
	payloadLen, err := quicvarint.Read(r)
	if err != nil {
		return h, err
	}
	if payloadLen > MaxPayloadLen {
		return h, fmt.Errorf("payload length %d out of range", payloadLen)
	}
	h.PayloadLen = protocol.ByteCount(payloadLen)
	blockSize, err := quicvarint.Read(r)
	if err != nil {
		return h, err
	}
	if blockSize > MaxPayloadLen {
		return h, fmt.Errorf("invalid block size %d", blockSize)
	}
	h.BlockSize = protocol.ByteCount(blockSize)
	groupSize, err := quicvarint.Read(r)
	if err != nil {
		return h, err
	}
	if groupSize > protocol.MaxBlocksPerPacket {
		return h, fmt.Errorf("group size %d out of range", groupSize)
	}
	h.GroupSize = int(groupSize)
	repair, err := quicvarint.Read(r)
	if err != nil {
		return h, err
	}
	if repair > 256 {
		return h, fmt.Errorf("invalid number of repair symbols per group: %d", repair)
	}
	h.RepairPerGroup = int(repair)
	if _, err := io.ReadFull(r, h.Digest[:]); err != nil {
		return h, err
	}
	if err := h.validate(); err != nil {
		return h, err
	}
	return h, nil
}
