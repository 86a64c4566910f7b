package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/missiontle/internal/aggregate"
	"github.com/star/missiontle/internal/config"
	"github.com/star/missiontle/internal/mission"
	"github.com/star/missiontle/internal/tle"
	"github.com/star/missiontle/internal/upstream"
	"github.com/star/missiontle/internal/version"
)

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs cmd and returns the process exit code. Command failures are
// reported on the command's error stream; an exitError has already said
// what it needs to.
func execute(cmd *cobra.Command) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	return 1
}

// exitError carries a process exit code for outcomes that are not
// failures of the command itself.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "missiontle",
		Short:         "Look up TLEs for every payload of a launch mission",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(opts), newGetCmd(opts), newVersionCmd())
	return cmd
}

// load resolves configuration and the process logger.
func (o *rootOptions) load(logOut io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, newLogger(logOut, cfg.LogLevel), nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}))
}

// newAggregator wires both providers behind one upstream client.
func newAggregator(cfg config.Config, logger *slog.Logger) (*aggregate.Aggregator, error) {
	client := upstream.NewClient(upstream.Config{
		Timeout:      cfg.UpstreamTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, logger)

	resolver, err := mission.NewResolver(client, cfg.MissionBaseURL, logger)
	if err != nil {
		return nil, err
	}
	fetcher, err := tle.NewFetcher(client, cfg.TLEBaseURL, cfg.TLEAPIKey, logger)
	if err != nil {
		return nil, err
	}
	return aggregate.New(resolver, fetcher, aggregate.Config{
		TransactionLimit: cfg.TransactionLimit,
		Concurrency:      cfg.Concurrency,
	}, logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "missiontle "+version.Full())
		},
	}
}
