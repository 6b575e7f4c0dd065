package qram

import (
	"context"
	"image"
	"sync"
)

// Canvas is the local render surface of a device.
// It is the Display a Presenter paints on and, for loop-back receiving, the ImageSource and RefreshSignal of a Scanner.
type Canvas struct {
	mx      sync.Mutex
	img     image.Image
	frames  uint64
	painted chan struct{} // closed and replaced on every paint
}

var (
	_ Display       = &Canvas{}
	_ ImageSource   = &Canvas{}
	_ RefreshSignal = &Canvas{}
)

func NewCanvas() *Canvas {
	return &Canvas{painted: make(chan struct{})}
}

func (c *Canvas) Paint(img image.Image) {
	c.mx.Lock()
	c.img = img
	c.frames++
	close(c.painted)
	c.painted = make(chan struct{})
	c.mx.Unlock()
}

// Capture returns the last painted image.
func (c *Canvas) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.img == nil {
		return nil, ErrNothingPainted
	}
	return c.img, nil
}

// WaitRefresh blocks until the next paint.
func (c *Canvas) WaitRefresh(ctx context.Context) error {
	c.mx.Lock()
	painted := c.painted
	c.mx.Unlock()
	select {
	case <-painted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frames is the number of images painted so far.
func (c *Canvas) Frames() uint64 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.frames
}
