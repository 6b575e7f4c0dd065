package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"time"

	"github.com/ddritzenhoff/qram"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var (
	flagTimeout     time.Duration
	flagLoopbackOut string
)

var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Present a payload and receive it again through the local canvas",
	RunE:  runLoopback,
}

func init() {
	addPayloadFlags(loopbackCmd)
	loopbackCmd.Flags().StringVar(&flagLoopbackOut, "out", "", "file to write the received payload to")
	loopbackCmd.Flags().DurationVar(&flagTimeout, "timeout", time.Minute, "give up after this long")
}

var errPayloadMismatch = errors.New("received payload differs from the presented one")

func runLoopback(cmd *cobra.Command, _ []string) (err error) {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, e.close()) }()
	e.qcfg.OnProgress = reportProgress(e.logger, os.Stderr)

	data, err := e.payload()
	if err != nil {
		return err
	}
	params, err := e.cfg.presentParams()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, flagTimeout)
	defer cancelTimeout()

	a := qram.NewArbiter(nil, e.codec, e.qcfg)
	defer func() { err = multierr.Append(err, a.Close()) }()
	if err := a.StartPresenting(ctx, data, params); err != nil {
		return err
	}
	s, err := a.StartReceiving(ctx)
	if err != nil {
		return err
	}

	var received []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		received, err = s.AwaitCompletion(gctx)
		return err
	})
	g.Go(func() error {
		select {
		case <-s.Done():
		case <-gctx.Done():
			a.CancelReceiving()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	r, _ := s.Wait(context.Background())
	e.logger.Info().
		Uint64("frames", a.Canvas().Frames()).
		Uint64("captures", s.Scan().Attempts).
		Int("packets", r.Progress.ReceivedPackets).
		Dur("elapsed", r.Elapsed).
		Msg("Loopback complete")
	if !bytes.Equal(received, data) {
		return errPayloadMismatch
	}
	if flagLoopbackOut != "" {
		return writeOutput(flagLoopbackOut, received)
	}
	return nil
}
