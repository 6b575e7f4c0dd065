package main

import (
	"github.com/ddritzenhoff/qram"
	"github.com/ddritzenhoff/qram/internal/fec"
	"github.com/ddritzenhoff/qram/internal/protocol"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	flagFrames    int
	flagFramesOut string
)

var presentCmd = &cobra.Command{
	Use:   "present",
	Short: "Render the frame sequence of a payload to PNG files",
	RunE:  runPresent,
}

func init() {
	addPayloadFlags(presentCmd)
	presentCmd.Flags().StringVar(&flagFramesOut, "out", "frames", "directory to write the frames to")
	presentCmd.Flags().IntVar(&flagFrames, "frames", 0, "number of frames to write, defaults to two rounds of packets")
}

func runPresent(cmd *cobra.Command, _ []string) (err error) {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, e.close()) }()

	data, err := e.payload()
	if err != nil {
		return err
	}
	params, err := e.cfg.presentParams()
	if err != nil {
		return err
	}
	frames := flagFrames
	if frames <= 0 {
		n, err := roundLength(data, params.BlockSize, e.qcfg)
		if err != nil {
			return err
		}
		frames = 2 * n
	}
	display, err := newPNGDisplay(flagFramesOut, frames, e.logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	p := qram.NewPresenter(e.codec, display, e.qcfg)
	if err := p.Start(ctx, data, params); err != nil {
		return err
	}
	select {
	case <-display.full:
	case <-ctx.Done():
	}
	p.Stop()
	<-p.Done()
	if err := display.Err(); err != nil {
		return err
	}
	e.logger.Info().Int("frames", display.written).Str("dir", flagFramesOut).Msg("Wrote frames")
	return nil
}

// roundLength is the number of packets after which the stream of data repeats.
func roundLength(data []byte, blockSize int, cfg *qram.Config) (int, error) {
	if blockSize <= 0 {
		blockSize = qram.DefaultBlockSize
	}
	maxBlocksPerPacket := cfg.MaxBlocksPerPacket
	if maxBlocksPerPacket <= 0 {
		maxBlocksPerPacket = protocol.DefaultMaxBlocksPerPacket
	}
	enc, err := fec.NewEncoder(data, fec.Params{
		Scheme:             cfg.FECScheme,
		BlockSize:          protocol.ByteCount(blockSize),
		MaxBlocksPerPacket: maxBlocksPerPacket,
		RepairRatio:        cfg.RepairRatio,
	})
	if err != nil {
		return 0, err
	}
	return enc.PacketsPerRound(), nil
}
