// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/config"
	"github.com/jeranaias/fcrouter/internal/logging"
	"github.com/jeranaias/fcrouter/internal/server"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags and the state they produce.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	jsonOutput bool
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	errOut io.Writer
}

// NewRootCommand builds the fcrouter command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{
		logger: zap.NewNop(),
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	root := &cobra.Command{
		Use:   "fcrouter",
		Short: "Hybrid on-device/cloud function-call router",
		Long: `fcrouter turns a conversation and a tool catalog into function calls.
Simple requests run on a small on-device model; hard ones, and local answers
that fail validation, escalate to a cloud model.`,
		Version:       fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.out = cmd.OutOrStdout()
			opts.errOut = cmd.ErrOrStderr()
			return opts.setup(cmd.Flags())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.fcrouter/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: console, json")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRouteCmd(opts),
		newServeCmd(opts),
		newBenchCmd(opts),
		newToolsCmd(opts),
		newConfigCmd(opts),
		newDecisionsCmd(opts),
		newReplCmd(opts),
		newModelsCmd(opts),
	)
	return root
}

// setup loads .env and the config, applies flag overrides and builds the
// logger. Runs before every subcommand.
func (o *rootOptions) setup(flags *pflag.FlagSet) error {
	if o.noColor {
		SetColorsEnabled(false)
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var err error
	if o.configPath != "" {
		o.cfg, err = config.LoadFromPath(o.configPath)
	} else {
		o.cfg, err = config.Load()
	}
	if o.cfg == nil {
		return err
	}
	loadErr := err

	if flags.Changed("log-level") {
		o.cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		o.cfg.Log.Format = o.logFormat
	}

	logger, err := logging.New(o.cfg.Log)
	if err != nil {
		return err
	}
	o.logger = logger
	if loadErr != nil {
		o.logger.Warn("CONFIG_FILE_IGNORED", zap.Error(loadErr))
	}
	server.Version = Version
	return nil
}

// app builds the App for a command.
func (o *rootOptions) app(ctx context.Context, opts AppOptions) (*App, error) {
	return NewApp(ctx, o.cfg, o.logger, opts)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, cancel := signalAwareContext(context.Background())
	defer cancel()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return ExitCode(err)
	}
	return ExitSuccess
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
