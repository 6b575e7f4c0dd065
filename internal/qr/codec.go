// Package qr renders packets as QR symbols and finds them again in captured frames.
package qr

import (
	"errors"
	"fmt"
	"image"

	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"
)

// Mode is the QR data mode requested for a symbol.
type Mode string

const (
	ModeAlphanumeric Mode = "alphanumeric"
	ModeByte         Mode = "byte"
)

const (
	MinVersion = 1
	MaxVersion = 40

	// DefaultModulePixels is the edge length of one QR module in rendered images.
	DefaultModulePixels = 4
)

var (
	ErrInvalidVersion = errors.New("qr: invalid symbol version")
	ErrNoImage        = errors.New("qr: no image")
)

// RenderOptions select the symbol geometry.
type RenderOptions struct {
	// Version is the QR version, 1 to 40. It fixes the symbol's module count and therefore its capacity.
	Version int
	// Mode is advisory, the encoder always uses the densest mode the text allows.
	Mode  Mode
	Level protocol.Resistance
}

type Codec struct {
	ModulePixels int
	// DisableBorder drops the quiet zone around rendered symbols.
	DisableBorder bool

	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

func NewCodec() *Codec {
	return &Codec{
		ModulePixels: DefaultModulePixels,
		reader:       zxqr.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func recoveryLevel(r protocol.Resistance) qrgen.RecoveryLevel {
	if r == protocol.ResistanceHigh {
		return qrgen.Highest
	}
	return qrgen.Medium
}

// Render draws text as a QR symbol of exactly the requested version.
// It fails if the text doesn't fit into that version at the requested level.
func (c *Codec) Render(text string, opts RenderOptions) (image.Image, error) {
	if opts.Version < MinVersion || opts.Version > MaxVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, opts.Version)
	}
	q, err := qrgen.NewWithForcedVersion(text, opts.Version, recoveryLevel(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("qr: rendering %d characters at version %d: %w", len(text), opts.Version, err)
	}
	q.DisableBorder = c.DisableBorder
	px := c.ModulePixels
	if px <= 0 {
		px = DefaultModulePixels
	}
	return q.Image(-px), nil
}

// Scan looks for a single QR symbol in img.
// A frame without a readable symbol is reported as found == false, not as an error.
// Scan is not safe for concurrent use.
func (c *Codec) Scan(img image.Image) (string, bool, error) {
	if img == nil || img.Bounds().Empty() {
		return "", false, ErrNoImage
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, fmt.Errorf("qr: %w", err)
	}
	result, err := c.reader.Decode(bmp, c.hints)
	if err != nil {
		var re gozxing.ReaderException
		if errors.As(err, &re) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("qr: %w", err)
	}
	return result.GetText(), true, nil
}
