package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ddritzenhoff/qram"
	"github.com/rs/zerolog"
)

const framePattern = "frame-%06d.png"

// pngDisplay writes every painted frame to a PNG file in dir.
// Once limit frames were written, full is closed and further frames are dropped.
type pngDisplay struct {
	dir    string
	limit  int
	logger zerolog.Logger

	mx      sync.Mutex
	written int
	err     error
	full    chan struct{}
}

var _ qram.Display = &pngDisplay{}

func newPNGDisplay(dir string, limit int, logger zerolog.Logger) (*pngDisplay, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &pngDisplay{dir: dir, limit: limit, logger: logger, full: make(chan struct{})}, nil
}

func (d *pngDisplay) Paint(img image.Image) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.written >= d.limit || d.err != nil {
		return
	}
	name := filepath.Join(d.dir, fmt.Sprintf(framePattern, d.written))
	if err := writePNG(name, img); err != nil {
		d.logger.Error().Err(err).Str("file", name).Msg("Failed to write frame")
		d.err = err
		close(d.full)
		return
	}
	d.written++
	if d.written == d.limit {
		close(d.full)
	}
}

// Err returns the error that stopped the display, if any.
func (d *pngDisplay) Err() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.err
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// dirCamera replays the PNG frames of a directory in name order, looping forever.
type dirCamera struct {
	dir string
}

var _ qram.Camera = &dirCamera{}

func (c *dirCamera) Open(ctx context.Context) (qram.CameraFeed, error) {
	names, err := filepath.Glob(filepath.Join(c.dir, "*.png"))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no PNG frames in %s", c.dir)
	}
	sort.Strings(names)
	return &dirFeed{names: names}, nil
}

type dirFeed struct {
	names []string

	mx     sync.Mutex
	next   int
	closed bool
}

var errFeedClosed = errors.New("camera feed closed")

func (f *dirFeed) Capture(ctx context.Context) (image.Image, error) {
	f.mx.Lock()
	if f.closed {
		f.mx.Unlock()
		return nil, errFeedClosed
	}
	name := f.names[f.next]
	f.next = (f.next + 1) % len(f.names)
	f.mx.Unlock()

	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return img, nil
}

func (f *dirFeed) Close() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.closed = true
	return nil
}
