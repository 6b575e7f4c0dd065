package main

import (
	"os"

	"github.com/ddritzenhoff/qram"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	flagIn         string
	flagPayloadOut string
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive a payload from a directory of captured frames",
	RunE:  runReceive,
}

func init() {
	receiveCmd.Flags().StringVar(&flagIn, "in", "frames", "directory of captured PNG frames, replayed as the camera")
	receiveCmd.Flags().StringVar(&flagPayloadOut, "out", "-", "file to write the payload to")
}

func runReceive(cmd *cobra.Command, _ []string) (err error) {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, e.close()) }()
	e.qcfg.OnProgress = reportProgress(e.logger, os.Stderr)

	ctx, cancel := signalContext()
	defer cancel()
	a := qram.NewArbiter(&dirCamera{dir: flagIn}, e.codec, e.qcfg)
	defer func() { err = multierr.Append(err, a.Close()) }()

	if err := a.StartCamera(ctx); err != nil {
		return err
	}
	s, err := a.StartReceiving(ctx)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		a.CancelReceiving()
	}()
	data, err := s.AwaitCompletion(ctx)
	if err != nil {
		return err
	}
	return writeOutput(flagPayloadOut, data)
}
