package qram

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/ddritzenhoff/qram/internal/qr"
	"github.com/ddritzenhoff/qram/internal/wire"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// PresentParams are the parameters of a presentation chosen by the user.
type PresentParams struct {
	// BlockSize in bytes, at most 400. Zero selects 400.
	BlockSize int
	// FPS is the frame rate. Zero selects 15, FPSAuto derives it from the payload size.
	FPS        int
	Resistance Resistance
}

// PresentInfo describes a running presentation.
type PresentInfo struct {
	PayloadLen  int
	BlockSize   int
	FPS         int
	Version     int
	TotalBlocks int
	Resistance  Resistance
}

func (i PresentInfo) String() string {
	size := fmt.Sprintf("%d bytes", i.PayloadLen)
	if i.PayloadLen >= 1024 {
		size = fmt.Sprintf("%d kiB", i.PayloadLen/1024)
	}
	return fmt.Sprintf("Presenting %s @ %d frames/second, block size is %d bytes...", size, i.FPS, i.BlockSize)
}

type presentation struct {
	info   PresentInfo
	cancel context.CancelFunc
	done   chan struct{}
	frames atomic.Uint64
}

// A Presenter paints the packet stream of a payload on a Display at a steady frame rate.
// At most one presentation runs at a time.
type Presenter struct {
	codec   Codec
	display Display
	config  *Config
	logger  zerolog.Logger

	mx     sync.Mutex
	active *presentation
	last   *presentation
}

func NewPresenter(codec Codec, display Display, config *Config) *Presenter {
	config = populateConfig(config)
	return &Presenter{
		codec:   codec,
		display: display,
		config:  config,
		logger:  config.Logger.With().Str("component", "presenter").Logger(),
	}
}

// Start begins presenting payload. If a presentation is active, Start stops it instead and returns nil.
// Invalid parameters are rejected before anything is painted.
func (p *Presenter) Start(ctx context.Context, payload []byte, params PresentParams) error {
	p.mx.Lock()
	if p.active != nil {
		p.mx.Unlock()
		p.Stop()
		return nil
	}
	defer p.mx.Unlock()

	blockSize := params.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	version, err := SymbolVersion(blockSize, params.Resistance)
	if err != nil {
		return err
	}
	fps, err := FrameRate(len(payload), blockSize, params.FPS)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return &ConfigError{Field: "payload", Value: "(empty)", Reason: "nothing to present"}
	}
	stream, err := p.config.BlockEngine.NewEncoder(payload, blockSize, p.config.MaxBlocksPerPacket)
	if err != nil {
		return fmt.Errorf("qram: encoding payload: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &presentation{
		info: PresentInfo{
			PayloadLen:  len(payload),
			BlockSize:   blockSize,
			FPS:         fps,
			Version:     version,
			TotalBlocks: (len(payload) + blockSize - 1) / blockSize,
			Resistance:  params.Resistance,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.active = s
	p.last = s

	p.logger.Info().Int("version", s.info.Version).Int("blocks", s.info.TotalBlocks).Msg(s.info.String())
	if p.config.Tracer != nil {
		p.config.Tracer.StartedPresenting(s.info.PayloadLen, s.info.BlockSize, s.info.FPS, s.info.Version, s.info.TotalBlocks)
	}
	go p.run(ctx, s, stream)
	return nil
}

func (p *Presenter) run(ctx context.Context, s *presentation, stream PacketStream) {
	defer func() {
		p.mx.Lock()
		if p.active == s {
			p.active = nil
		}
		p.mx.Unlock()
		close(s.done)
	}()

	opts := RenderOptions{
		Version: s.info.Version,
		Mode:    qr.ModeAlphanumeric,
		Level:   s.info.Resistance,
	}
	limiter := rate.NewLimiter(rate.Limit(s.info.FPS), 1)
	// the first frame is painted right away, the limiter paces the ones after it
	limiter.Allow()

	var renderErrors int
	for {
		packet, err := stream.NextPacket(ctx)
		if err != nil {
			return
		}
		img, err := p.codec.Render(wire.EncodeText(packet), opts)
		if ctx.Err() != nil {
			// stopped while rendering
			return
		}
		if err != nil {
			renderErrors++
			if renderErrors == 1 {
				p.logger.Warn().Err(err).Int("version", opts.Version).Msg("Skipping frame that couldn't be rendered")
			} else {
				p.logger.Debug().Err(err).Int("errors", renderErrors).Msg("Skipping frame that couldn't be rendered")
			}
		} else if !p.paint(ctx, s, img) {
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}
}

// paint shows img unless s was stopped. Stop clears p.active under the same lock, so no frame of s is painted after Stop returned.
func (p *Presenter) paint(ctx context.Context, s *presentation, img image.Image) bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.active != s || ctx.Err() != nil {
		return false
	}
	p.display.Paint(img)
	s.frames.Inc()
	return true
}

// Stop ends the active presentation. It doesn't wait for the pacing loop to exit, see Done.
func (p *Presenter) Stop() {
	p.mx.Lock()
	s := p.active
	p.active = nil
	p.mx.Unlock()
	if s == nil {
		return
	}
	s.cancel()
	frames := s.frames.Load()
	p.logger.Info().Uint64("frames", frames).Msg("Stopped presenting")
	if p.config.Tracer != nil {
		p.config.Tracer.StoppedPresenting(frames)
	}
}

func (p *Presenter) Active() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.active != nil
}

// Info describes the active or, if none is active, the last presentation.
func (p *Presenter) Info() (PresentInfo, bool) {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.last == nil {
		return PresentInfo{}, false
	}
	return p.last.info, true
}

// Done is closed once the pacing loop of the last presentation exited.
// It is closed right away if nothing was presented yet.
func (p *Presenter) Done() <-chan struct{} {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.last == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return p.last.done
}

// Frames is the number of frames painted by the last presentation.
func (p *Presenter) Frames() uint64 {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.last == nil {
		return 0
	}
	return p.last.frames.Load()
}
