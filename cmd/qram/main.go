// Command qram presents payloads as QR frame sequences and receives them again.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ddritzenhoff/qram"
	"github.com/ddritzenhoff/qram/internal/logging"
	"github.com/ddritzenhoff/qram/internal/qr"
	"github.com/ddritzenhoff/qram/internal/trace"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagConfig      string
	flagLogLevel    string
	flagTrace       string
	flagBlockSize   int
	flagFPS         string
	flagResistance  string
	flagScheme      string
	flagPayloadFile string
	flagText        string
	flagSize        int
)

var rootCmd = &cobra.Command{
	Use:           "qram",
	Short:         "Move a payload across a one-way optical channel",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level, overridden by "+logging.EnvLogLevel)
	rootCmd.PersistentFlags().StringVar(&flagTrace, "trace", "", "file to write the session event trace to")
	rootCmd.PersistentFlags().IntVar(&flagBlockSize, "block-size", 0, "block size in bytes, at most 400")
	rootCmd.PersistentFlags().StringVar(&flagFPS, "fps", "", "frames per second, or \"auto\"")
	rootCmd.PersistentFlags().StringVar(&flagResistance, "resistance", "", "error correction tier, \"default\" or \"H\"")
	rootCmd.PersistentFlags().StringVar(&flagScheme, "fec-scheme", "", "FEC scheme, \"rs\" or \"xor\"")

	rootCmd.AddCommand(presentCmd, receiveCmd, loopbackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("qram failed")
	}
}

// env bundles what every command needs.
type env struct {
	cfg    fileConfig
	qcfg   *qram.Config
	codec  *qr.Codec
	logger zerolog.Logger
	close  func() error
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = zerolog.InfoLevel
	}
	logger := logging.Configure("qram", level)

	qcfg, err := cfg.qramConfig()
	if err != nil {
		return nil, err
	}
	qcfg.Logger = &logger
	e := &env{cfg: cfg, qcfg: qcfg, logger: logger, close: func() error { return nil }}

	if cfg.Trace != "" {
		f, err := os.Create(cfg.Trace)
		if err != nil {
			return nil, fmt.Errorf("creating trace file: %w", err)
		}
		w := trace.NewWriter(f)
		qcfg.Tracer = w
		e.close = func() error {
			if err := w.Err(); err != nil {
				f.Close()
				return fmt.Errorf("writing trace: %w", err)
			}
			return f.Close()
		}
	}

	e.codec = qr.NewCodec()
	if cfg.ModulePixels > 0 {
		e.codec.ModulePixels = cfg.ModulePixels
	}
	return e, nil
}

var _ qram.Tracer = (*trace.Writer)(nil)

func applyFlags(cmd *cobra.Command, cfg *fileConfig) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("trace") {
		cfg.Trace = flagTrace
	}
	if flags.Changed("block-size") {
		cfg.BlockSize = flagBlockSize
	}
	if flags.Changed("fps") {
		cfg.FPS = flagFPS
	}
	if flags.Changed("resistance") {
		cfg.Resistance = flagResistance
	}
	if flags.Changed("fec-scheme") {
		cfg.Scheme = flagScheme
	}
	if flags.Changed("size") {
		cfg.PayloadSize = flagSize
	}
}

func addPayloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPayloadFile, "file", "", "file to present")
	cmd.Flags().StringVar(&flagText, "text", "", "text to present")
	cmd.Flags().IntVar(&flagSize, "size", 0, "size of the random payload presented if neither --file nor --text is given")
	cmd.MarkFlagsMutuallyExclusive("file", "text")
}

// payload returns the custom data if given, otherwise random bytes.
func (e *env) payload() ([]byte, error) {
	switch {
	case flagPayloadFile != "":
		return os.ReadFile(flagPayloadFile)
	case flagText != "":
		return []byte(flagText), nil
	}
	data := make([]byte, e.cfg.PayloadSize)
	if _, err := rand.Read(data); err != nil {
		return nil, err
	}
	e.logger.Info().Int("size", len(data)).Msg("Using random data")
	return data, nil
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// reportProgress logs the progress of a receive session.
func reportProgress(logger zerolog.Logger, w io.Writer) func(qram.ProgressSnapshot) {
	return func(p qram.ProgressSnapshot) {
		logger.Debug().Int("packets", p.ReceivedPackets).Msgf("Decoded %d/%d blocks", p.ReceivedBlocks, p.TotalBlocks)
		if w != nil {
			fmt.Fprintf(w, "\rReceived %d packets, decoded %d/%d blocks %s", p.ReceivedPackets, p.ReceivedBlocks, p.TotalBlocks, blocksMap(p))
			if p.Done {
				fmt.Fprintln(w)
			}
		}
	}
}

// blocksMap renders the known blocks of a progress snapshot, one character per block.
func blocksMap(p qram.ProgressSnapshot) string {
	const width = 50
	total := p.TotalBlocks
	if total == 0 {
		return ""
	}
	n := total
	if n > width {
		n = width
	}
	m := make([]byte, n)
	for i := range m {
		// a cell stands for a run of blocks if there are more blocks than cells
		first, last := i*total/n, (i+1)*total/n
		m[i] = '#'
		for id := first; id < last; id++ {
			if !p.Blocks.Has(qram.BlockID(id)) {
				m[i] = '.'
				break
			}
		}
	}
	return "[" + string(m) + "]"
}
