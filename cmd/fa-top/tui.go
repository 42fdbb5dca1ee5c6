package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nixlim/fa-top/internal/storage"
	"github.com/nixlim/fa-top/internal/tui"
)

var viewNames = map[string]tui.ViewState{
	"chat":      tui.ViewChat,
	"traces":    tui.ViewTraces,
	"history":   tui.ViewHistory,
	"analytics": tui.ViewAnalytics,
	"compare":   tui.ViewCompare,
	"bench":     tui.ViewBench,
}

func parseView(name string) (tui.ViewState, error) {
	if name == "" {
		return tui.ViewChat, nil
	}
	v, ok := viewNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown view %q: expected chat, traces, history, analytics, compare or bench", name)
	}
	return v, nil
}

func newTUICmd(g *globalFlags) *cobra.Command {
	var view string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive dashboard",
		Long:  "Starts the full-screen dashboard. This is also what fa-top runs without a subcommand.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, g, view)
		},
	}

	cmd.Flags().StringVar(&view, "view", "chat", "view to open first (chat, traces, history, analytics, compare, bench)")
	return cmd
}

func runTUI(cmd *cobra.Command, g *globalFlags, view string) error {
	start, err := parseView(view)
	if err != nil {
		return err
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	store, persistent, err := storage.NewStore(e.cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage error: %w", err)
	}

	opts := []tui.ModelOption{
		tui.WithBackend(e.client),
		tui.WithStartView(start),
	}

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.CloseStore = store.Close
	// The manager owns telemetry from here on.
	rt := e.telemetry
	e.telemetry = nil
	shutdownMgr.ShutdownTelemetry = rt.Shutdown

	// Only a file-backed snapshot is worth recording into.
	if persistent {
		rec := storage.NewRecorder(store)
		shutdownMgr.CloseRecorder = rec.Close
		opts = append(opts, tui.WithSnapshotRecorder(rec, e.client.BaseURL()))
	}
	opts = append(opts, tui.WithOnShutdown(func() {
		_ = shutdownMgr.Shutdown()
	}))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	model := tui.NewModel(e.cfg, opts...)
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			_ = shutdownMgr.Shutdown()
			p.Quit()
		case <-done:
		}
	}()

	_, runErr := p.Run()
	// A quit key already ran Shutdown; this covers every other exit.
	shutErr := shutdownMgr.Shutdown()
	if runErr != nil {
		return runErr
	}
	if shutErr != nil {
		return fmt.Errorf("shutdown: %w", shutErr)
	}
	return nil
}
