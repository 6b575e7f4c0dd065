// Package qram moves a payload across a one-way optical channel.
//
// A Presenter paints a paced stream of QR symbols, each carrying one erasure coded packet.
// A receive Session captures frames, decodes whatever symbols it finds and reassembles the payload from any sufficient subset of packets, in any order.
// The Arbiter keeps presenting, the camera and receiving from stepping on each other.
package qram

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/ddritzenhoff/qram/internal/fec"
	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/ddritzenhoff/qram/internal/qr"
)

type (
	BlockID          = protocol.BlockID
	FECSchemeID      = protocol.FECSchemeID
	Resistance       = protocol.Resistance
	ProgressSnapshot = fec.Progress
	BlockSet         = fec.BlockSet
	RenderOptions    = qr.RenderOptions
)

const (
	ReedSolomonFECScheme = protocol.ReedSolomonFECScheme
	XORFECScheme         = protocol.XORFECScheme

	ResistanceDefault = protocol.ResistanceDefault
	ResistanceHigh    = protocol.ResistanceHigh
)

// NewBlockSet builds a set from ids in any order.
func NewBlockSet(ids ...BlockID) BlockSet { return fec.NewBlockSet(ids...) }

// Codec turns packet text into a visual symbol and back.
type Codec interface {
	// Render draws text as a symbol. It fails if the text doesn't fit the requested version.
	Render(text string, opts RenderOptions) (image.Image, error)
	// Scan looks for one symbol in img. A frame without a symbol returns found == false and no error.
	Scan(img image.Image) (text string, found bool, err error)
}

// ImageSource yields the current image of a surface or camera.
type ImageSource interface {
	Capture(ctx context.Context) (image.Image, error)
}

// RefreshSignal blocks until the next opportunity to capture a frame.
type RefreshSignal interface {
	WaitRefresh(ctx context.Context) error
}

// Display shows rendered symbols.
type Display interface {
	Paint(img image.Image)
}

// Camera is the exclusive, physical image source of the receiving device.
type Camera interface {
	// Open acquires the camera. A failure is reported once and not retried.
	Open(ctx context.Context) (CameraFeed, error)
}

// A CameraFeed is an acquired camera. Closing it releases the device.
type CameraFeed interface {
	ImageSource
	io.Closer
}

// PacketStream is the ordered, effectively endless packet stream of one payload.
type PacketStream interface {
	NextPacket(ctx context.Context) ([]byte, error)
}

// BlockDecoder reassembles one payload. It is owned by a single session.
type BlockDecoder interface {
	// Ingest accepts a packet in any order and returns the updated progress.
	Ingest(packet []byte) (ProgressSnapshot, error)
	// Wait blocks until the payload is reconstructed, Abort is called, a fatal error occurs or ctx is done.
	Wait(ctx context.Context) (ProgressSnapshot, error)
	// Finalize returns the payload once the progress reports Done.
	Finalize() ([]byte, error)
	// Abort makes pending and future calls to Wait return promptly.
	Abort()
}

// BlockEngine is the erasure coding collaborator.
type BlockEngine interface {
	NewEncoder(data []byte, blockSize, maxBlocksPerPacket int) (PacketStream, error)
	NewDecoder() BlockDecoder
	// IsFatal reports whether an error returned by Ingest ends the session.
	IsFatal(err error) bool
}

// A Tracer is notified about session events.
type Tracer interface {
	StartedPresenting(payloadLen, blockSize, fps, version, totalBlocks int)
	StoppedPresenting(packetsSent uint64)
	StartedReceiving(source string)
	UpdatedProgress(receivedPackets, receivedBlocks, totalBlocks int)
	EndedReceiving(outcome string, payloadLen int, elapsed time.Duration, err error)
}
