package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/quic-go/quic-go/quicvarint"
)

const (
	sourceFrameType = 0x1
	repairFrameType = 0x2
)

// ErrMalformedFrame is wrapped by every error returned from ParseFrame.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// A Frame is one packet as produced by the block engine.
type Frame interface {
	// Append appends the serialized frame to b.
	Append(b []byte) []byte
	// Length is the length of the serialized frame.
	Length() int
	FrameHeader() *Header
}

// SourceFrame carries one block of the payload, zero padded to the block size.
type SourceFrame struct {
	Header
	BlockID protocol.BlockID
	Payload []byte
}

func (f *SourceFrame) FrameHeader() *Header { return &f.Header }

func (f *SourceFrame) Append(b []byte) []byte {
	b = quicvarint.Append(b, sourceFrameType)
	b = f.Header.append(b)
	b = quicvarint.Append(b, uint64(f.BlockID))
	return append(b, f.Payload...)
}

func (f *SourceFrame) Length() int {
	return int(quicvarint.Len(sourceFrameType)) + f.Header.length() + int(quicvarint.Len(uint64(f.BlockID))) + len(f.Payload)
}

// RepairFrame carries one repair symbol of a coding group.
type RepairFrame struct {
	Header
	GroupID  protocol.GroupID
	ParityID protocol.ParityID
	Payload  []byte
}

func (f *RepairFrame) FrameHeader() *Header { return &f.Header }

func (f *RepairFrame) Append(b []byte) []byte {
	b = quicvarint.Append(b, repairFrameType)
	b = f.Header.append(b)
	b = quicvarint.Append(b, uint64(f.GroupID))
	b = quicvarint.Append(b, uint64(f.ParityID))
	return append(b, f.Payload...)
}

func (f *RepairFrame) Length() int {
	return int(quicvarint.Len(repairFrameType)) + f.Header.length() + int(quicvarint.Len(uint64(f.GroupID))) + int(quicvarint.Len(uint64(f.ParityID))) + len(f.Payload)
}

// ParseFrame parses a single packet. The payload of the returned frame does not alias data.
func ParseFrame(data []byte) (Frame, error) {
	f, err := parseFrame(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return f, nil
}

func parseFrame(r *bytes.Reader) (Frame, error) {
	typ, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	switch typ {
	case sourceFrameType:
		return parseSourceFrame(r)
	case repairFrameType:
		return parseRepairFrame(r)
	default:
		return nil, fmt.Errorf("unknown frame type %#x", typ)
	}
}

func parseSourceFrame(r *bytes.Reader) (*SourceFrame, error) {
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}
	id, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if id >= uint64(h.TotalBlocks()) {
		return nil, fmt.Errorf("block %d out of range, transfer has %d blocks", id, h.TotalBlocks())
	}
	payload, err := readPayload(r, h.BlockSize)
	if err != nil {
		return nil, err
	}
	return &SourceFrame{Header: h, BlockID: protocol.BlockID(id), Payload: payload}, nil
}

func parseRepairFrame(r *bytes.Reader) (*RepairFrame, error) {
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}
	gid, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if gid >= uint64(h.NumGroups()) {
		return nil, fmt.Errorf("group %d out of range, transfer has %d groups", gid, h.NumGroups())
	}
	pid, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if pid >= uint64(h.RepairPerGroup) {
		return nil, fmt.Errorf("parity id %d out of range, groups carry %d repair symbols", pid, h.RepairPerGroup)
	}
	payload, err := readPayload(r, h.BlockSize)
	if err != nil {
		return nil, err
	}
	return &RepairFrame{Header: h, GroupID: protocol.GroupID(gid), ParityID: protocol.ParityID(pid), Payload: payload}, nil
}

// readPayload reads the rest of the packet, which has to be exactly one block long.
func readPayload(r *bytes.Reader, blockSize protocol.ByteCount) ([]byte, error) {
	if protocol.ByteCount(r.Len()) != blockSize {
		return nil, fmt.Errorf("expected a payload of %d bytes, got %d", blockSize, r.Len())
	}
	payload := make([]byte, blockSize)
	// can't fail, the length was checked above
	_, _ = r.Read(payload)
	return payload, nil
}
