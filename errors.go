package qram

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionCancelled is returned by AwaitCompletion when the session was cancelled.
	ErrSessionCancelled = errors.New("qram: session cancelled")
	// ErrNoImageSource is returned when receiving is started without the camera or a local presentation.
	ErrNoImageSource = errors.New("qram: receiving needs the camera or a local presentation")
	// ErrReceiving is returned when a receive session is started while another one runs.
	ErrReceiving = errors.New("qram: already receiving")
	// ErrNoCamera is returned when the camera is started but there is none.
	ErrNoCamera = errors.New("qram: no camera")
	// ErrCameraUnavailable wraps the error of a camera that couldn't be opened.
	ErrCameraUnavailable = errors.New("qram: camera unavailable")
	// ErrArbiterClosed is returned by the Arbiter after Close.
	ErrArbiterClosed = errors.New("qram: arbiter closed")
	// ErrNothingPainted is returned by Canvas.Capture before the first paint.
	ErrNothingPainted = errors.New("qram: nothing painted yet")
)

// A ConfigError rejects a parameter before a session starts.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("qram: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}
