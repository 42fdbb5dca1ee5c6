package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

const scorePrefix = "score_"

// MetricPoint is one run's value for a metric.
type MetricPoint struct {
	RunID string
	Time  time.Time
	Label string
	Value float64
}

// MetricSeries selects the rows for metric and orders them by run start.
// Rows without a start time sort first and are labelled "-".
func MetricSeries(rows []api.BenchSummaryRow, metric string) []MetricPoint {
	var filtered []api.BenchSummaryRow
	for _, r := range rows {
		if r.Metric == metric {
			filtered = append(filtered, r)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].StartedAt.Before(filtered[j].StartedAt.Time)
	})

	out := make([]MetricPoint, 0, len(filtered))
	for _, r := range filtered {
		p := MetricPoint{RunID: r.RunID, Time: r.StartedAt.Time, Value: r.Value, Label: "-"}
		if !r.StartedAt.IsZero() {
			p.Label = r.StartedAt.Local().Format("2006-01-02 15:04")
		}
		out = append(out, p)
	}
	return out
}

// TypeScore is one per-probe-type score of a run.
type TypeScore struct {
	Metric string
	Value  float64
}

// TypeBreakdown returns the score_* metrics, minus the overall score, of
// the most recently started run, with the prefix stripped.
func TypeBreakdown(rows []api.BenchSummaryRow) []TypeScore {
	if len(rows) == 0 {
		return nil
	}

	latest := rows[0]
	for _, r := range rows[1:] {
		if r.StartedAt.After(latest.StartedAt.Time) {
			latest = r
		}
	}

	var out []TypeScore
	for _, r := range rows {
		if r.RunID != latest.RunID {
			continue
		}
		if !strings.HasPrefix(r.Metric, scorePrefix) || r.Metric == api.OverallMetric {
			continue
		}
		out = append(out, TypeScore{
			Metric: strings.TrimPrefix(r.Metric, scorePrefix),
			Value:  r.Value,
		})
	}
	return out
}

// MetricLabel strips the score_ prefix for display.
func MetricLabel(metric string) string {
	return strings.TrimPrefix(metric, scorePrefix)
}
