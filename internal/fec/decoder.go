package fec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/ddritzenhoff/qram/internal/wire"
)

var (
	// ErrMalformedPacket is returned by Ingest for packets that can't be parsed. It is not fatal.
	ErrMalformedPacket = errors.New("fec: malformed packet")
	// ErrPacketMismatch is returned by Ingest for packets of a different transfer once a block of the current one is known. It is not fatal.
	ErrPacketMismatch = errors.New("fec: packet belongs to a different transfer")
	// ErrAborted is returned once Abort was called.
	ErrAborted = errors.New("fec: decoding aborted")
	// ErrDigestMismatch is fatal: all blocks are known but they don't assemble to the announced payload.
	ErrDigestMismatch = errors.New("fec: payload digest mismatch")
	// ErrRecoveryFailed is fatal: a group held enough symbols but couldn't be reconstructed.
	ErrRecoveryFailed = errors.New("fec: block recovery failed")
	ErrNotDone        = errors.New("fec: decoding not done")
)

// IsFatal reports whether err ends the decoding.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDigestMismatch) || errors.Is(err, ErrRecoveryFailed)
}

// Decoder reassembles a payload from packets ingested in any order.
// It is safe for concurrent use.
type Decoder struct {
	mx sync.Mutex

	header *wire.Header
	scheme BlockFECScheme
	groups map[protocol.GroupID]*group

	receivedPackets int
	blocks          BlockSet
	data            []byte
	err             error

	done      chan struct{}
	failed    chan struct{}
	aborted   chan struct{}
	abortOnce sync.Once
}

func NewDecoder() *Decoder {
	return &Decoder{
		groups:  make(map[protocol.GroupID]*group),
		done:    make(chan struct{}),
		failed:  make(chan struct{}),
		aborted: make(chan struct{}),
	}
}

// Ingest adds a packet and returns the updated progress.
// Malformed packets, packets of another transfer and fatal errors are reported as errors, see IsFatal.
func (d *Decoder) Ingest(packet []byte) (Progress, error) {
	f, err := wire.ParseFrame(packet)
	if err != nil {
		return d.Progress(), fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}

	d.mx.Lock()
	defer d.mx.Unlock()

	select {
	case <-d.aborted:
		return d.progressLocked(), ErrAborted
	default:
	}
	if d.err != nil {
		return d.progressLocked(), d.err
	}

	h := f.FrameHeader()
	if d.header == nil {
		scheme, err := newScheme(h.Scheme)
		if err != nil {
			return d.progressLocked(), fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}
		d.header = h
		d.scheme = scheme
	} else if !d.header.Equal(h) {
		if d.blocks.Len() > 0 {
			return d.progressLocked(), ErrPacketMismatch
		}
		// nothing is known of the first transfer yet, e.g. a stale symbol was still on screen: follow the new one
		scheme, err := newScheme(h.Scheme)
		if err != nil {
			return d.progressLocked(), fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}
		d.header = h
		d.scheme = scheme
		d.groups = make(map[protocol.GroupID]*group)
	}
	d.receivedPackets++

	if d.isDone() {
		return d.progressLocked(), nil
	}

	var g *group
	var newBlocks []protocol.BlockID
	switch f := f.(type) {
	case *wire.SourceFrame:
		g = d.group(d.header.GroupOf(f.BlockID))
		if g.isProcessed {
			return d.progressLocked(), nil
		}
		added, err := g.addSource(f.BlockID, f.Payload)
		if err != nil {
			return d.progressLocked(), fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}
		if added {
			newBlocks = append(newBlocks, f.BlockID)
		}
	case *wire.RepairFrame:
		g = d.group(f.GroupID)
		if g.isProcessed {
			return d.progressLocked(), nil
		}
		if _, err := g.addRepair(f.ParityID, f.Payload); err != nil {
			return d.progressLocked(), fmt.Errorf("%w: %w", ErrMalformedPacket, err)
		}
	}

	if g.isRecoverable() {
		recovered := g.missing()
		if err := d.scheme.recoverSymbols(g); err != nil {
			return d.progressLocked(), d.fail(fmt.Errorf("%w: group %d: %w", ErrRecoveryFailed, g.id, err))
		}
		newBlocks = append(newBlocks, recovered...)
		g.isProcessed = true
		// repair symbols are of no use anymore
		g.pidToRepair = nil
	}
	d.blocks = d.blocks.with(newBlocks...)

	if d.blocks.Len() == d.header.TotalBlocks() {
		if err := d.assemble(); err != nil {
			return d.progressLocked(), d.fail(err)
		}
		close(d.done)
	}
	return d.progressLocked(), nil
}

func (d *Decoder) group(id protocol.GroupID) *group {
	g, ok := d.groups[id]
	if !ok {
		g = newGroup(d.header, id)
		d.groups[id] = g
	}
	return g
}

func (d *Decoder) assemble() error {
	bs := int(d.header.BlockSize)
	data := make([]byte, 0, d.header.TotalBlocks()*bs)
	for i := 0; i < d.header.TotalBlocks(); i++ {
		id := protocol.BlockID(i)
		payload, ok := d.groups[d.header.GroupOf(id)].idToSource[id]
		if !ok {
			// can't happen, the block set and the groups are updated together
			return fmt.Errorf("%w: block %d missing after completion", ErrRecoveryFailed, id)
		}
		data = append(data, payload...)
	}
	data = data[:d.header.PayloadLen]
	if got := digest(data); !bytes.Equal(got[:], d.header.Digest[:]) {
		return ErrDigestMismatch
	}
	d.data = data
	// the blocks were only needed to build the payload
	d.groups = nil
	return nil
}

func (d *Decoder) fail(err error) error {
	d.err = err
	close(d.failed)
	return err
}

func (d *Decoder) isDone() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the payload is reconstructed, decoding failed, Abort was called or ctx is done.
func (d *Decoder) Wait(ctx context.Context) (Progress, error) {
	// a completed decoding wins over a later abort
	select {
	case <-d.done:
		return d.Progress(), nil
	default:
	}
	select {
	case <-d.done:
		return d.Progress(), nil
	case <-d.failed:
		d.mx.Lock()
		defer d.mx.Unlock()
		return d.progressLocked(), d.err
	case <-d.aborted:
		return d.Progress(), ErrAborted
	case <-ctx.Done():
		return d.Progress(), ctx.Err()
	}
}

// Done is closed once the payload is reconstructed.
func (d *Decoder) Done() <-chan struct{} { return d.done }

// Finalize returns the reconstructed payload.
func (d *Decoder) Finalize() ([]byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.isDone() {
		return nil, ErrNotDone
	}
	return bytes.Clone(d.data), nil
}

// Abort cancels pending and future calls to Wait. It is safe to call multiple times.
func (d *Decoder) Abort() {
	d.abortOnce.Do(func() { close(d.aborted) })
}

func (d *Decoder) Progress() Progress {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.progressLocked()
}

func (d *Decoder) progressLocked() Progress {
	p := Progress{
		ReceivedPackets: d.receivedPackets,
		ReceivedBlocks:  d.blocks.Len(),
		Blocks:          d.blocks,
		Done:            d.isDone(),
	}
	if d.header != nil {
		p.TotalBlocks = d.header.TotalBlocks()
	}
	if p.Done {
		p.Data = d.data
	}
	return p
}
