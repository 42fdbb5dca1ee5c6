// Package aggregate shapes flat trace records into chart-ready series.
// All functions are pure computations: they never modify their input and
// return the same output for any permutation of it.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

// LatencyBucket holds the mean latency per provider for one local hour.
// Providers with no traces in the hour have no entry in ByProvider.
type LatencyBucket struct {
	Label      string
	Start      time.Time
	ByProvider map[string]float64
}

// TokenBucket holds the prompt and completion token sums for one local
// hour across all providers.
type TokenBucket struct {
	Label      string
	Start      time.Time
	Prompt     int64
	Completion int64
}

// BucketLabel formats the hour bucket of t in the process's local zone as
// "M/D H:00", e.g. "2/5 9:00".
func BucketLabel(t time.Time) string {
	lt := t.Local()
	return fmt.Sprintf("%d/%d %d:00", int(lt.Month()), lt.Day(), lt.Hour())
}

func hourStart(t time.Time) time.Time {
	lt := t.Local()
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, time.Local)
}

// chronological returns a copy of traces sorted ascending by timestamp.
// Ties are broken by ID and then latency so the order, and therefore every
// floating-point sum, does not depend on the input order.
func chronological(traces []api.Trace) []api.Trace {
	sorted := make([]api.Trace, len(traces))
	copy(sorted, traces)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Timestamp.Equal(b.Timestamp.Time) {
			return a.Timestamp.Before(b.Timestamp.Time)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.LatencyMS < b.LatencyMS
	})
	return sorted
}

// LatencySeries buckets traces by local hour and averages latency per
// provider. Buckets are returned in order of first appearance after sorting
// by timestamp.
func LatencySeries(traces []api.Trace) []LatencyBucket {
	type acc struct {
		bucket LatencyBucket
		sums   map[string]float64
		counts map[string]int
	}

	var order []string
	byKey := make(map[string]*acc)

	for _, t := range chronological(traces) {
		label := BucketLabel(t.Timestamp.Time)
		a, ok := byKey[label]
		if !ok {
			a = &acc{
				bucket: LatencyBucket{Label: label, Start: hourStart(t.Timestamp.Time)},
				sums:   make(map[string]float64),
				counts: make(map[string]int),
			}
			byKey[label] = a
			order = append(order, label)
		}
		a.sums[t.Provider] += t.LatencyMS
		a.counts[t.Provider]++
	}

	out := make([]LatencyBucket, 0, len(order))
	for _, label := range order {
		a := byKey[label]
		b := a.bucket
		b.ByProvider = make(map[string]float64, len(a.sums))
		for p, sum := range a.sums {
			b.ByProvider[p] = sum / float64(a.counts[p])
		}
		out = append(out, b)
	}
	return out
}

// TokenSeries buckets traces by local hour and sums prompt and completion
// tokens, treating missing counts as zero.
func TokenSeries(traces []api.Trace) []TokenBucket {
	var order []string
	byKey := make(map[string]*TokenBucket)

	for _, t := range chronological(traces) {
		label := BucketLabel(t.Timestamp.Time)
		b, ok := byKey[label]
		if !ok {
			b = &TokenBucket{Label: label, Start: hourStart(t.Timestamp.Time)}
			byKey[label] = b
			order = append(order, label)
		}
		if t.PromptTokens != nil {
			b.Prompt += *t.PromptTokens
		}
		if t.CompletionTokens != nil {
			b.Completion += *t.CompletionTokens
		}
	}

	out := make([]TokenBucket, 0, len(order))
	for _, label := range order {
		out = append(out, *byKey[label])
	}
	return out
}

// SortLatencyBuckets orders buckets strictly by their hour start. The
// series functions already emit chronological order for a single zone;
// this is for callers that merge series or cross a DST fold, where two
// distinct hours can share a label.
func SortLatencyBuckets(buckets []LatencyBucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
}

// SortTokenBuckets is SortLatencyBuckets for token buckets.
func SortTokenBuckets(buckets []TokenBucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
}

// Providers returns every provider that appears in any bucket, sorted.
func Providers(buckets []LatencyBucket) []string {
	seen := make(map[string]bool)
	for _, b := range buckets {
		for p := range b.ByProvider {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RatingBin counts traces with one rating value.
type RatingBin struct {
	Rating int
	Count  int
}

// RatingDistribution returns exactly five bins for ratings 1..5 in order.
// Unrated traces and scores outside 1..5 are ignored.
func RatingDistribution(traces []api.Trace) []RatingBin {
	var counts [5]int
	for _, t := range traces {
		if t.RatingScore == nil {
			continue
		}
		s := *t.RatingScore
		if s < 1 || s > 5 {
			continue
		}
		counts[s-1]++
	}

	out := make([]RatingBin, 5)
	for i, c := range counts {
		out[i] = RatingBin{Rating: i + 1, Count: c}
	}
	return out
}

// HasRatings reports whether any bin is non-empty.
func HasRatings(bins []RatingBin) bool {
	for _, b := range bins {
		if b.Count > 0 {
			return true
		}
	}
	return false
}
