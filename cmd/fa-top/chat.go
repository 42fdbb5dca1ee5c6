package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nixlim/fa-top/internal/aggregate"
)

func newChatCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
	}

	cmd.AddCommand(newChatSendCmd(g))
	cmd.AddCommand(newChatHistoryCmd(g))
	return cmd
}

func newChatSendCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>...",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatSend(cmd, g, strings.Join(args, " "))
		},
	}
}

func runChatSend(cmd *cobra.Command, g *globalFlags, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message is empty")
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.SendMessage(cmd.Context(), message)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	fmt.Fprintln(out, resp.Response)
	fmt.Fprintf(out, "\n(message %s, trace %s)\n", shortID(resp.ID), shortID(resp.TraceID))
	return nil
}

func newChatHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit  int
		before string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent chat messages, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatHistory(cmd, g, limit, before)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of messages to fetch")
	cmd.Flags().StringVar(&before, "before", "", "cursor: only messages older than this message ID")
	return cmd
}

func runChatHistory(cmd *cobra.Command, g *globalFlags, limit int, before string) error {
	if limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.History(cmd.Context(), limit, before)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	if len(resp.Messages) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return nil
	}

	// The backend pages newest first.
	w := newTable(out)
	fmt.Fprintln(w, "ID\tTIME\tROLE\tCONTENT")
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		m := resp.Messages[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortID(m.ID), formatStamp(m.Timestamp), m.Role, aggregate.Preview(oneLine(m.Content), previewWidth))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if resp.HasMore && resp.NextCursor != nil {
		fmt.Fprintf(out, "\nOlder messages: --before %s\n", *resp.NextCursor)
	}
	return nil
}

func newArchiveCmd(g *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move every live chat message into the archive",
		Long:  "Archives all live chat messages on the backend. This cannot be undone, so --yes is required.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("archive cannot be undone; pass --yes to confirm")
			}
			return runArchive(cmd, g)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm archiving")
	return cmd
}

func runArchive(cmd *cobra.Command, g *globalFlags) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.ArchiveMessages(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	fmt.Fprintf(out, "Archived %s messages\n", humanize.Comma(int64(resp.ArchivedCount)))
	return nil
}
