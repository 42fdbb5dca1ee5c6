package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
)

func newMessagesCmd(g *globalFlags) *cobra.Command {
	var query api.AdminMessageQuery

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Search the message history",
		Long:  "Lists admin messages grouped by day, optionally filtered by role and a search term.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessages(cmd, g, query)
		},
	}

	cmd.Flags().StringVar(&query.Role, "role", "", "only messages with this role (user or assistant)")
	cmd.Flags().StringVar(&query.Query, "search", "", "only messages containing this text")
	cmd.Flags().IntVar(&query.Limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "number of messages to skip")
	return cmd
}

func runMessages(cmd *cobra.Command, g *globalFlags, query api.AdminMessageQuery) error {
	switch query.Role {
	case "", api.RoleUser, api.RoleAssistant:
	default:
		return fmt.Errorf("invalid role %q: expected user or assistant", query.Role)
	}
	if query.Limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", query.Limit)
	}
	if query.Offset < 0 {
		return fmt.Errorf("--offset must not be negative, got %d", query.Offset)
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.AdminMessages(cmd.Context(), query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	if len(resp.Messages) == 0 {
		fmt.Fprintln(out, "No messages found.")
		return nil
	}

	for i, group := range aggregate.GroupByDay(resp.Messages) {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, group.Day)
		w := newTable(out)
		for _, m := range group.Messages {
			fmt.Fprintf(w, "  %s\t%s\t%s\n",
				m.Timestamp.Local().Format("15:04"), m.Role, aggregate.Preview(oneLine(m.Content), 120))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	last := min(query.Offset+len(resp.Messages), resp.Total)
	fmt.Fprintf(out, "\nShowing %d-%d of %s\n", query.Offset+1, last, humanize.Comma(int64(resp.Total)))
	return nil
}

type statsOutput struct {
	Messages    *api.MessageStats     `json:"messages"`
	Performance *api.PerformanceStats `json:"performance"`
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print message and performance statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, g)
		},
	}
}

func runStats(cmd *cobra.Command, g *globalFlags) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ms, err := e.client.MessageStats(cmd.Context())
	if err != nil {
		return err
	}
	perf, err := e.client.PerformanceStats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, statsOutput{Messages: ms, Performance: perf})
	}

	w := newTable(out)
	fmt.Fprintf(w, "Messages\t%s\n", humanize.Comma(int64(ms.TotalMessages)))
	fmt.Fprintf(w, "  user\t%s\n", humanize.Comma(int64(ms.UserMessages)))
	fmt.Fprintf(w, "  assistant\t%s\n", humanize.Comma(int64(ms.AssistantMessages)))
	fmt.Fprintf(w, "  today\t%s\n", humanize.Comma(int64(ms.MessagesToday)))
	fmt.Fprintf(w, "First message\t%s\n", formatStamp(ms.FirstMessageAt))
	fmt.Fprintf(w, "Last message\t%s\n", formatStamp(ms.LastMessageAt))
	fmt.Fprintf(w, "LLM calls\t%s\n", humanize.Comma(int64(perf.TotalCalls)))
	fmt.Fprintf(w, "Avg latency\t%s\n", formatLatency(perf.AvgLatencyMS))
	fmt.Fprintf(w, "Tokens/sec\t%s\n", formatOptionalFloat(perf.AvgTokensPerSec))
	fmt.Fprintf(w, "Prompt tokens\t%s\n", humanize.Comma(perf.TotalPromptTokens))
	fmt.Fprintf(w, "Completion tokens\t%s\n", humanize.Comma(perf.TotalCompletionTokens))
	fmt.Fprintf(w, "Avg rating\t%s\n", formatOptionalFloat(perf.AvgRating))
	if err := w.Flush(); err != nil {
		return err
	}

	names := aggregate.ProviderNames(perf)
	if len(names) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w = newTable(out)
	fmt.Fprintln(w, "PROVIDER\tCALLS\tAVG LATENCY\tAVG RATING")
	for _, name := range names {
		p := perf.ByProvider[name]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, p.Calls, formatLatency(p.AvgLatencyMS), formatOptionalFloat(p.AvgRating))
	}
	return w.Flush()
}
