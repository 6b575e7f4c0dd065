package qram

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Mode is the exclusive activity of a device.
type Mode int

const (
	ModeIdle Mode = iota
	ModeCamera
	ModePresenting
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCamera:
		return "camera"
	case ModePresenting:
		return "presenting"
	default:
		return fmt.Sprintf("unknown mode: %d", int(m))
	}
}

// The Arbiter owns the camera, the canvas and the presenter of a device.
// Presenting and the camera exclude each other: activating one deactivates the other.
// A receive session scans whichever of them is active, and is cancelled when it is deactivated.
type Arbiter struct {
	camera    Camera
	codec     Codec
	config    *Config
	logger    zerolog.Logger
	canvas    *Canvas
	presenter *Presenter

	mx          sync.Mutex
	mode        Mode
	feed        CameraFeed
	session     *Session
	sessionMode Mode
	closed      bool
}

// NewArbiter creates an idle arbiter. camera may be nil for devices without one.
func NewArbiter(camera Camera, codec Codec, config *Config) *Arbiter {
	config = populateConfig(config)
	canvas := NewCanvas()
	return &Arbiter{
		camera:    camera,
		codec:     codec,
		config:    config,
		logger:    config.Logger.With().Str("component", "arbiter").Logger(),
		canvas:    canvas,
		presenter: NewPresenter(codec, canvas, config),
	}
}

func (a *Arbiter) Mode() Mode {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.mode
}

// Session returns the running receive session, if any.
func (a *Arbiter) Session() *Session {
	a.mx.Lock()
	defer a.mx.Unlock()
	if !a.receivingLocked() {
		return nil
	}
	return a.session
}

func (a *Arbiter) receivingLocked() bool {
	if a.session == nil {
		return false
	}
	select {
	case <-a.session.Done():
		// resolved, watchSession is about to clear it
		return false
	default:
		return true
	}
}

func (a *Arbiter) Canvas() *Canvas       { return a.canvas }
func (a *Arbiter) Presenter() *Presenter { return a.presenter }

// StartCamera acquires the camera, stopping a presentation first.
// If the camera can't be opened, the error is returned and the arbiter stays idle.
func (a *Arbiter) StartCamera(ctx context.Context) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.closed {
		return ErrArbiterClosed
	}
	if a.mode == ModeCamera {
		return nil
	}
	if a.camera == nil {
		return ErrNoCamera
	}
	if a.mode == ModePresenting {
		a.stopPresentingLocked()
	}
	feed, err := a.camera.Open(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to open the camera")
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	a.feed = feed
	a.mode = ModeCamera
	a.logger.Info().Msg("Camera on")
	return nil
}

// StopCamera releases the camera. It does nothing if the camera is off.
func (a *Arbiter) StopCamera() error {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.mode != ModeCamera {
		return nil
	}
	return a.stopCameraLocked()
}

func (a *Arbiter) stopCameraLocked() error {
	a.cancelSessionLocked(ModeCamera)
	feed := a.feed
	a.feed = nil
	a.mode = ModeIdle
	a.logger.Info().Msg("Camera off")
	if err := feed.Close(); err != nil {
		return fmt.Errorf("qram: closing camera: %w", err)
	}
	return nil
}

// StartPresenting presents payload on the canvas, turning the camera off first.
// It does nothing if a presentation is running already.
func (a *Arbiter) StartPresenting(ctx context.Context, payload []byte, params PresentParams) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.closed {
		return ErrArbiterClosed
	}
	if a.mode == ModePresenting {
		return nil
	}
	if a.mode == ModeCamera {
		if err := a.stopCameraLocked(); err != nil {
			a.logger.Warn().Err(err).Msg("Turning the camera off")
		}
	}
	if err := a.presenter.Start(ctx, payload, params); err != nil {
		return err
	}
	a.mode = ModePresenting
	go a.watchPresenter(a.presenter.Done())
	return nil
}

// watchPresenter resets the mode when a presentation ends on its own, e.g. because its context was cancelled.
func (a *Arbiter) watchPresenter(done <-chan struct{}) {
	<-done
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.mode == ModePresenting && !a.presenter.Active() {
		a.cancelSessionLocked(ModePresenting)
		a.mode = ModeIdle
	}
}

// StopPresenting ends the presentation. It does nothing if nothing is presented.
func (a *Arbiter) StopPresenting() {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.mode != ModePresenting {
		return
	}
	a.stopPresentingLocked()
}

func (a *Arbiter) stopPresentingLocked() {
	a.cancelSessionLocked(ModePresenting)
	a.presenter.Stop()
	a.mode = ModeIdle
}

// StartReceiving begins a receive session on the camera if it is on, otherwise on the local presentation.
func (a *Arbiter) StartReceiving(ctx context.Context) (*Session, error) {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.closed {
		return nil, ErrArbiterClosed
	}
	if a.receivingLocked() {
		return nil, ErrReceiving
	}
	var src Source
	switch a.mode {
	case ModeCamera:
		src = Source{Name: "camera", Images: a.feed, Refresh: NewRefreshClock(a.config.RefreshRate)}
	case ModePresenting:
		src = Source{Name: "canvas", Images: a.canvas, Refresh: a.canvas}
	default:
		return nil, ErrNoImageSource
	}
	s, err := Begin(ctx, src, a.codec, a.config)
	if err != nil {
		return nil, err
	}
	a.session = s
	a.sessionMode = a.mode
	go a.watchSession(s, a.mode)
	return s, nil
}

func (a *Arbiter) watchSession(s *Session, mode Mode) {
	<-s.Done()
	r, _ := s.Wait(context.Background())
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.session == s {
		a.session = nil
	}
	// a received loop-back presentation has served its purpose
	if r.Outcome == Succeeded && mode == ModePresenting && a.mode == ModePresenting {
		a.presenter.Stop()
		a.mode = ModeIdle
	}
}

// CancelReceiving cancels the running receive session, if any.
func (a *Arbiter) CancelReceiving() {
	a.mx.Lock()
	s := a.session
	a.mx.Unlock()
	if s != nil {
		s.Cancel()
	}
}

func (a *Arbiter) cancelSessionLocked(mode Mode) {
	if a.session != nil && a.sessionMode == mode {
		a.session.Cancel()
	}
}

func (a *Arbiter) ToggleCamera(ctx context.Context) error {
	if a.Mode() == ModeCamera {
		return a.StopCamera()
	}
	return a.StartCamera(ctx)
}

func (a *Arbiter) TogglePresenting(ctx context.Context, payload []byte, params PresentParams) error {
	if a.Mode() == ModePresenting {
		a.StopPresenting()
		return nil
	}
	return a.StartPresenting(ctx, payload, params)
}

// ToggleReceiving cancels the running receive session, or starts one. It returns the started session.
func (a *Arbiter) ToggleReceiving(ctx context.Context) (*Session, error) {
	if a.Session() != nil {
		a.CancelReceiving()
		return nil, nil
	}
	return a.StartReceiving(ctx)
}

// Close stops receiving, presenting and the camera. If the camera is an io.Closer, it is closed as well.
// The arbiter can't be used afterwards.
func (a *Arbiter) Close() error {
	a.mx.Lock()
	defer a.mx.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	var errs error
	if a.session != nil {
		a.session.Cancel()
	}
	switch a.mode {
	case ModeCamera:
		errs = multierr.Append(errs, a.stopCameraLocked())
	case ModePresenting:
		a.stopPresentingLocked()
	}
	if c, ok := a.camera.(io.Closer); ok {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}
