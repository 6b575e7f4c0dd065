package qram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SessionState is the lifecycle state of a receive session.
type SessionState int

const (
	StateIdle      SessionState = iota // created, not scanning yet
	StateScanning                      // capturing and ingesting packets
	StateComplete                      // payload reconstructed, terminal
	StateCancelled                     // cancelled before completion, terminal
	StateFailed                        // decoding failed, terminal
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown session state: %d", int(s))
	}
}

// isValidTransition defines which state changes are legal.
// Terminal states have no outgoing transitions.
func isValidTransition(from, to SessionState) bool {
	allowed := map[SessionState][]SessionState{
		StateIdle:     {StateScanning, StateCancelled},
		StateScanning: {StateComplete, StateCancelled, StateFailed},
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome is how a receive session ended.
type Outcome int

const (
	Succeeded Outcome = iota + 1
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown outcome: %d", int(o))
	}
}

func (o Outcome) state() SessionState {
	switch o {
	case Succeeded:
		return StateComplete
	case Cancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

// Result is the resolution of a receive session.
type Result struct {
	Outcome Outcome
	// Payload is only set if the session succeeded.
	Payload  []byte
	Progress ProgressSnapshot
	Elapsed  time.Duration
	// Err is the cause of a failure, or the context error if the session's context ended it.
	Err error
}

// Source is where a receive session captures its frames.
type Source struct {
	// Name identifies the source in logs and traces, e.g. "camera" or "canvas".
	Name    string
	Images  ImageSource
	Refresh RefreshSignal
}

// A Session receives a single payload. It resolves exactly once.
type Session struct {
	source  Source
	config  *Config
	logger  zerolog.Logger
	decoder BlockDecoder
	scan    *ScanHandle
	started time.Time

	mx       sync.Mutex
	state    SessionState
	progress ProgressSnapshot
	result   Result

	// ignored counts packets the decoder rejected. Only touched by onPacket.
	ignored int

	// cancelled is set before the decoder is aborted, so resolving the abort can tell it apart from a failure.
	cancelled   bool
	resolveOnce sync.Once
	resolved    chan struct{}
}

// Begin starts a receive session scanning src.
func Begin(ctx context.Context, src Source, codec Codec, config *Config) (*Session, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if src.Images == nil || src.Refresh == nil {
		return nil, ErrNoImageSource
	}
	config = populateConfig(config)
	if src.Name == "" {
		src.Name = "unknown"
	}
	s := &Session{
		source:   src,
		config:   config,
		logger:   config.Logger.With().Str("component", "receiver").Str("source", src.Name).Logger(),
		decoder:  config.BlockEngine.NewDecoder(),
		state:    StateIdle,
		resolved: make(chan struct{}),
	}
	s.transition(StateScanning)
	s.started = time.Now()
	s.logger.Info().Msg("Started receiving")
	if config.Tracer != nil {
		config.Tracer.StartedReceiving(src.Name)
	}

	// onPacket takes the lock first, so no packet is handled before the scan handle is set
	s.mx.Lock()
	s.scan = NewScanner(codec, s.logger).Run(ctx, src.Images, src.Refresh, s.onPacket)
	s.mx.Unlock()
	go s.watch(ctx)
	return s, nil
}

func (s *Session) transition(next SessionState) bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	if !isValidTransition(s.state, next) {
		return false
	}
	s.state = next
	return true
}

func (s *Session) watch(ctx context.Context) {
	progress, err := s.decoder.Wait(ctx)
	if err == nil {
		// onPacket resolves the session once the final snapshot is published
		return
	}
	s.mx.Lock()
	cancelled := s.cancelled
	s.mx.Unlock()
	if cancelled {
		s.resolve(Result{Outcome: Cancelled, Progress: progress})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.resolve(Result{Outcome: Cancelled, Progress: progress, Err: err})
		return
	}
	s.resolve(Result{Outcome: Failed, Progress: progress, Err: err})
}

// onPacket runs on the scan loop, which waits for it before capturing the next frame.
func (s *Session) onPacket(packet []byte) {
	s.mx.Lock()
	cancelled := s.cancelled
	s.mx.Unlock()
	if cancelled {
		return
	}

	progress, err := s.decoder.Ingest(packet)
	if err != nil {
		if s.config.BlockEngine.IsFatal(err) {
			s.resolve(Result{Outcome: Failed, Progress: progress, Err: err})
			s.decoder.Abort()
			return
		}
		s.ignored++
		if s.ignored == 1 {
			s.logger.Warn().Err(err).Msg("Ignoring packet")
		} else {
			s.logger.Debug().Err(err).Int("ignored", s.ignored).Msg("Ignoring packet")
		}
		return
	}

	s.mx.Lock()
	s.progress = progress
	s.mx.Unlock()
	if s.config.OnProgress != nil {
		s.config.OnProgress(progress)
	}
	if s.config.Tracer != nil {
		s.config.Tracer.UpdatedProgress(progress.ReceivedPackets, progress.ReceivedBlocks, progress.TotalBlocks)
	}
	s.logger.Debug().
		Int("packets", progress.ReceivedPackets).
		Int("blocks", progress.ReceivedBlocks).
		Int("total", progress.TotalBlocks).
		Msg("Progress")
	if progress.Done {
		s.succeed(progress)
	}
}

func (s *Session) succeed(progress ProgressSnapshot) {
	payload, err := s.decoder.Finalize()
	if err != nil {
		s.resolve(Result{Outcome: Failed, Progress: progress, Err: err})
		return
	}
	s.resolve(Result{Outcome: Succeeded, Payload: payload, Progress: progress})
}

func (s *Session) resolve(r Result) {
	s.resolveOnce.Do(func() {
		r.Elapsed = time.Since(s.started)
		s.transition(r.Outcome.state())
		s.mx.Lock()
		if r.Progress.ReceivedPackets >= s.progress.ReceivedPackets {
			s.progress = r.Progress
		} else {
			r.Progress = s.progress
		}
		s.result = r
		scan := s.scan
		s.mx.Unlock()
		scan.Cancel()

		switch r.Outcome {
		case Succeeded:
			s.logger.Info().
				Int("packets", r.Progress.ReceivedPackets).
				Msgf("Decoded %.3f KiB in time %.3f seconds", float64(len(r.Payload))/1024, r.Elapsed.Seconds())
		case Cancelled:
			s.logger.Info().Int("packets", r.Progress.ReceivedPackets).Msg("Receiving cancelled")
		case Failed:
			s.logger.Error().Err(r.Err).Msg("Receiving failed")
		}
		if s.config.Tracer != nil {
			s.config.Tracer.EndedReceiving(r.Outcome.String(), len(r.Payload), r.Elapsed, r.Err)
		}
		close(s.resolved)
	})
}

// Cancel stops the session. It is safe to call multiple times, and after the session resolved.
func (s *Session) Cancel() {
	s.mx.Lock()
	if s.cancelled {
		s.mx.Unlock()
		return
	}
	s.cancelled = true
	scan := s.scan
	s.mx.Unlock()
	s.decoder.Abort()
	scan.Cancel()
}

// Wait blocks until the session resolved or ctx is done.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.resolved:
		s.mx.Lock()
		defer s.mx.Unlock()
		return s.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// AwaitCompletion returns the payload of a successful session.
// It returns ErrSessionCancelled if the session was cancelled, and the cause if it failed.
func (s *Session) AwaitCompletion(ctx context.Context) ([]byte, error) {
	r, err := s.Wait(ctx)
	if err != nil {
		return nil, err
	}
	switch r.Outcome {
	case Succeeded:
		return r.Payload, nil
	case Cancelled:
		return nil, ErrSessionCancelled
	default:
		return nil, fmt.Errorf("qram: receiving failed: %w", r.Err)
	}
}

func (s *Session) State() SessionState {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state
}

// Progress returns the latest progress snapshot.
func (s *Session) Progress() ProgressSnapshot {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.progress
}

// Done is closed once the session resolved.
func (s *Session) Done() <-chan struct{} { return s.resolved }

// Source returns the name of the source the session scans.
func (s *Session) Source() string { return s.source.Name }

// Scan returns the statistics of the session's scan loop.
func (s *Session) Scan() ScanStats { return s.scan.Stats() }
