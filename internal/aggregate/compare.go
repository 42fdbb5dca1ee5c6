package aggregate

import (
	"sort"

	"github.com/nixlim/fa-top/internal/api"
)

// MinCompared is how many providers or sessions a comparison needs.
const MinCompared = 2

// CanCompare reports whether n candidates are enough for a side-by-side
// comparison.
func CanCompare(n int) bool {
	return n >= MinCompared
}

// ProviderNames returns the providers present in perf, sorted.
func ProviderNames(perf *api.PerformanceStats) []string {
	if perf == nil {
		return nil
	}
	names := make([]string, 0, len(perf.ByProvider))
	for p := range perf.ByProvider {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// SessionSummary is the per-session block of a session comparison.
type SessionSummary struct {
	Traces       int
	AvgLatencyMS float64
	AvgRating    float64
	Rated        int
}

// HasRating reports whether any trace in the session carried a score.
func (s SessionSummary) HasRating() bool {
	return s.Rated > 0
}

// SummarizeSession averages latency over all traces and rating over the
// traces that carry a score. Both averages are zero for empty input.
func SummarizeSession(traces []api.Trace) SessionSummary {
	s := SessionSummary{Traces: len(traces)}
	if len(traces) == 0 {
		return s
	}

	var latency float64
	var rating int
	for _, t := range chronological(traces) {
		latency += t.LatencyMS
		if t.RatingScore != nil {
			rating += *t.RatingScore
			s.Rated++
		}
	}
	s.AvgLatencyMS = latency / float64(len(traces))
	if s.Rated > 0 {
		s.AvgRating = float64(rating) / float64(s.Rated)
	}
	return s
}
