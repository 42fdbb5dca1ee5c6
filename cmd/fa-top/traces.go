package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTracesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traces",
		Short: "Inspect and rate request traces",
	}

	cmd.AddCommand(newTracesListCmd(g))
	cmd.AddCommand(newTracesRateCmd(g))
	return cmd
}

func newTracesListCmd(g *globalFlags) *cobra.Command {
	var (
		limit     int
		offset    int
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List traces, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTracesList(cmd, g, limit, offset, sessionID)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "number of traces to fetch")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of traces to skip")
	cmd.Flags().StringVar(&sessionID, "session", "", "only traces from this session ID")
	return cmd
}

func runTracesList(cmd *cobra.Command, g *globalFlags, limit, offset int, sessionID string) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return fmt.Errorf("--offset must not be negative, got %d", offset)
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.Traces(cmd.Context(), limit, offset, sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	if len(resp.Traces) == 0 {
		fmt.Fprintln(out, "No traces yet.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tTIME\tPROVIDER\tMODEL\tLATENCY\tTOKENS\tRATING")
	for _, t := range resp.Traces {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(t.ID), formatStamp(t.Timestamp), t.Provider, t.Model,
			formatLatency(t.LatencyMS), formatTokens(t.PromptTokens, t.CompletionTokens),
			formatRating(t.RatingScore))
	}
	return w.Flush()
}

func newTracesRateCmd(g *globalFlags) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "rate <trace-id> <score>",
		Short: "Rate a trace from 1 to 5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := parseScore(args[1])
			if err != nil {
				return err
			}
			return runTracesRate(cmd, g, args[0], score, note)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "optional note saved with the score")
	return cmd
}

func parseScore(raw string) (int, error) {
	score, err := strconv.Atoi(raw)
	if err != nil || score < 1 || score > 5 {
		return 0, fmt.Errorf("invalid score %q: expected 1-5", raw)
	}
	return score, nil
}

func runTracesRate(cmd *cobra.Command, g *globalFlags, traceID string, score int, note string) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.RateTrace(cmd.Context(), traceID, score, note)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	fmt.Fprintf(out, "Rated trace %s: %d\n", shortID(resp.TraceID), resp.Score)
	if n := deref(resp.Note); n != "" {
		fmt.Fprintf(out, "Note: %s\n", n)
	}
	return nil
}

func newSessionsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and start conversation sessions",
	}

	cmd.AddCommand(newSessionsListCmd(g))
	cmd.AddCommand(newSessionsNewCmd(g))
	return cmd
}

func newSessionsListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, g)
		},
	}
}

func runSessionsList(cmd *cobra.Command, g *globalFlags) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.Sessions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	if len(resp.Sessions) == 0 {
		fmt.Fprintln(out, "No sessions yet.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tSTARTED\tENDED\tMESSAGES\tLABEL")
	for _, s := range resp.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			shortID(s.ID), formatStamp(s.StartedAt), formatStamp(s.EndedAt), s.MessageCount, s.Label())
	}
	return w.Flush()
}

func newSessionsNewCmd(g *globalFlags) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "End the active session and start a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsNew(cmd, g, note)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "note describing the new session")
	return cmd
}

func runSessionsNew(cmd *cobra.Command, g *globalFlags, note string) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.CreateSession(cmd.Context(), note)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	line := "New session " + shortID(resp.SessionID) + " started"
	if ended := resp.EndedSession; ended != nil {
		line += fmt.Sprintf(" (previous: %d messages)", ended.MessageCount)
	}
	fmt.Fprintln(out, line)
	snap := resp.ConfigSnapshot
	fmt.Fprintf(out, "Config: %s / %s, %d context messages\n", snap.Provider, snap.Model, snap.ContextMessages)
	return nil
}
