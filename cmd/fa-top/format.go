package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/nixlim/fa-top/internal/api"
)

const (
	formatText = "text"
	formatJSON = "json"

	previewWidth = 60
)

func normalizeFormat(command, raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		format = formatText
	}
	switch format {
	case formatText, formatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("invalid %s format %q: expected text or json", command, raw)
	}
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func formatStamp(t api.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatLatency(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%.0fms", ms)
}

func formatTokens(prompt, completion *int64) string {
	if prompt == nil && completion == nil {
		return "-"
	}
	var p, c int64
	if prompt != nil {
		p = *prompt
	}
	if completion != nil {
		c = *completion
	}
	return humanize.Comma(p) + "/" + humanize.Comma(c)
}

func formatRating(score *int) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *score)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// oneLine flattens whitespace so previews fit a table row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
