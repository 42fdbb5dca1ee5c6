package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/config"
	"github.com/nixlim/fa-top/internal/telemetry"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const telemetryShutdownTimeout = 5 * time.Second

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	apiURL     string
	debugPath  string
	format     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "fa-top",
		Short: "fa-top: terminal client for the Future Asif assistant",
		Long: "fa-top chats with the assistant backend and inspects its traces, " +
			"sessions, message history and benchmark runs. Without a subcommand it " +
			"starts the interactive dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, g, "")
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to config file (default ~/.config/fa-top/config.toml)")
	pf.StringVar(&g.apiURL, "api-url", "", "backend base URL (overrides $FA_API_URL and the config file)")
	pf.StringVar(&g.debugPath, "debug", "", "write one JSON line per HTTP round trip to this file")
	pf.StringVar(&g.format, "format", formatText, "output format: text or json")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTUICmd(g))
	cmd.AddCommand(newChatCmd(g))
	cmd.AddCommand(newTracesCmd(g))
	cmd.AddCommand(newSessionsCmd(g))
	cmd.AddCommand(newMessagesCmd(g))
	cmd.AddCommand(newStatsCmd(g))
	cmd.AddCommand(newAnalyticsCmd(g))
	cmd.AddCommand(newArchiveCmd(g))
	cmd.AddCommand(newBenchCmd(g))
	cmd.AddCommand(newSnapshotCmd(g))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fa-top %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// env is everything a subcommand needs to talk to the backend.
type env struct {
	cfg       config.Config
	client    *api.Client
	telemetry *telemetry.Runtime
	format    string

	debugFile *os.File
}

// loadConfig reads the config file and applies flag and environment
// overrides: --api-url wins over $FA_API_URL, which wins over the file.
func (g *globalFlags) loadConfig(stderr io.Writer) (config.Config, error) {
	path := g.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	result, err := config.LoadFrom(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "fa-top: config warning: %s\n", w)
	}

	cfg := result.Config
	if v := strings.TrimSpace(g.apiURL); v != "" {
		cfg.API.BaseURL = v
	} else {
		cfg.ApplyEnv()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// open builds the API client for one command run. Callers must Close the
// result.
func (g *globalFlags) open(cmd *cobra.Command) (*env, error) {
	format, err := normalizeFormat(cmd.CommandPath(), g.format)
	if err != nil {
		return nil, err
	}

	cfg, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, format: format}

	loggers := api.MultiLogger{}
	if g.debugPath != "" {
		f, err := os.OpenFile(g.debugPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open debug log %q: %w", g.debugPath, err)
		}
		e.debugFile = f
		loggers = append(loggers, api.NewFileLogger(f))
	}

	rt, err := telemetry.Setup(cmd.Context(), cfg.Telemetry, Version)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("telemetry error: %w", err)
	}
	e.telemetry = rt
	loggers = append(loggers, rt)

	client, err := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout()),
		api.WithUserAgent(cfg.API.UserAgent),
		api.WithTransport(rt.WrapTransport),
		api.WithLogger(loggers),
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("api client error: %w", err)
	}
	e.client = client
	return e, nil
}

// Close flushes telemetry and closes the debug log.
func (e *env) Close() error {
	var errs []error
	if e.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		errs = append(errs, e.telemetry.Shutdown(ctx))
		cancel()
		e.telemetry = nil
	}
	if e.debugFile != nil {
		errs = append(errs, e.debugFile.Close())
		e.debugFile = nil
	}
	return errors.Join(errs...)
}

func (e *env) json() bool {
	return e.format == formatJSON
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "fa-top: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
