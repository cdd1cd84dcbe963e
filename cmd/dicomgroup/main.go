package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrsinham/dicomgroup/internal/config"
	"github.com/mrsinham/dicomgroup/internal/importer"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags
var version = "dev"

// app holds what every command shares once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	quiet      bool

	cfg    *config.Config
	logger zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "dicomgroup",
		Short:         "Group DICOM slices into reconstructable series and order them in space",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Load configuration from YAML file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(scanCmd(a))
	rootCmd.AddCommand(organizeCmd(a))
	rootCmd.AddCommand(generateCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(pickCmd(a))
	rootCmd.AddCommand(configCmd(a))
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	a.cfg = cfg
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// importFlags are shared by every command that reads a directory.
type importFlags struct {
	recursive bool
	workers   int
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Parallel readers (default: CPU cores)")
}

// importDir runs one import pass. Explicit flags win over the configuration.
func (a *app) importDir(cmd *cobra.Command, dir string, f importFlags) (*importer.Result, error) {
	opts := importer.Options{
		Recursive: a.cfg.Import.Recursive,
		Workers:   a.cfg.Import.Workers,
		Logger:    &a.logger,
	}
	if cmd.Flags().Changed("recursive") {
		opts.Recursive = f.recursive
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = f.workers
	}
	gopts, err := a.cfg.GroupingOptions(&a.logger)
	if err != nil {
		return nil, err
	}
	opts.Grouping = gopts

	if !a.quiet {
		opts.ProgressCallback = func(current, total int) {
			if current%100 == 0 || current == total {
				fmt.Fprintf(cmd.ErrOrStderr(), "  Reading: %d/%d\n", current, total)
			}
		}
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	res, err := importer.Import(ctx, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", dir, err)
	}
	return res, nil
}

// signalContext returns a context cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
