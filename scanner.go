package qram

import (
	"context"
	"errors"

	"github.com/ddritzenhoff/qram/internal/wire"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// RefreshClock is a RefreshSignal ticking at a fixed display rate.
type RefreshClock struct {
	limiter *rate.Limiter
}

var _ RefreshSignal = &RefreshClock{}

// NewRefreshClock returns a clock ticking hz times per second. A non-positive hz selects 60 Hz.
func NewRefreshClock(hz int) *RefreshClock {
	if hz <= 0 {
		hz = DefaultRefreshRate
	}
	return &RefreshClock{limiter: rate.NewLimiter(rate.Limit(hz), 1)}
}

func (c *RefreshClock) WaitRefresh(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// ScanStats counts the iterations of a scan loop.
type ScanStats struct {
	Attempts uint64
	// Misses are attempts that yielded no packet: failed captures, frames without a symbol and undecodable text.
	Misses  uint64
	Packets uint64
}

// A ScanHandle controls a running scan loop.
type ScanHandle struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}

	attempts atomic.Uint64
	misses   atomic.Uint64
	packets  atomic.Uint64
}

// Cancel stops the loop. No packet is delivered after Cancel returns,
// except for a delivery that was already in progress.
func (h *ScanHandle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Done is closed once the loop has exited.
func (h *ScanHandle) Done() <-chan struct{} { return h.done }

func (h *ScanHandle) Stats() ScanStats {
	return ScanStats{
		Attempts: h.attempts.Load(),
		Misses:   h.misses.Load(),
		Packets:  h.packets.Load(),
	}
}

// Scanner runs best-effort capture loops.
type Scanner struct {
	codec  Codec
	logger zerolog.Logger
}

func NewScanner(codec Codec, logger zerolog.Logger) *Scanner {
	return &Scanner{codec: codec, logger: logger}
}

// Run starts a scan loop on its own goroutine.
// Every iteration waits for a refresh, captures a frame and looks for a packet in it.
// onPacket is called synchronously with every decoded packet: the next capture only starts after it returned.
// The loop ends when ctx is done or the handle is cancelled.
func (s *Scanner) Run(ctx context.Context, source ImageSource, refresh RefreshSignal, onPacket func(packet []byte)) *ScanHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &ScanHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer cancel()
		s.loop(ctx, h, source, refresh, onPacket)
	}()
	return h
}

func (s *Scanner) loop(ctx context.Context, h *ScanHandle, source ImageSource, refresh RefreshSignal, onPacket func([]byte)) {
	for {
		if err := refresh.WaitRefresh(ctx); err != nil {
			if ctx.Err() == nil {
				s.logger.Debug().Err(err).Msg("Waiting for refresh failed")
			}
			return
		}
		if h.cancelled.Load() {
			return
		}
		h.attempts.Inc()
		packet, ok := s.scanOnce(ctx, source)
		if !ok {
			h.misses.Inc()
			continue
		}
		if h.cancelled.Load() {
			return
		}
		h.packets.Inc()
		onPacket(packet)
	}
}

func (s *Scanner) scanOnce(ctx context.Context, source ImageSource) ([]byte, bool) {
	// a capture that started is allowed to finish, cancellation is checked around it
	img, err := source.Capture(context.WithoutCancel(ctx))
	if err != nil {
		if !errors.Is(err, ErrNothingPainted) {
			s.logger.Debug().Err(err).Msg("Capture failed")
		}
		return nil, false
	}
	text, found, err := s.codec.Scan(img)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Scan failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	packet, err := wire.DecodeText(text)
	if err != nil {
		s.logger.Debug().Err(err).Int("length", len(text)).Msg("Ignoring symbol that doesn't carry a packet")
		return nil, false
	}
	return packet, true
}
