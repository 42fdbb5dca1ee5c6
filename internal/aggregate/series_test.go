package aggregate

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

func at(day, hour, minute int) api.Timestamp {
	return api.Timestamp{Time: time.Date(2026, 2, day, hour, minute, 0, 0, time.Local)}
}

func i64(v int64) *int64 { return &v }
func score(v int) *int   { return &v }

func trace(id, provider string, ts api.Timestamp, latency float64) api.Trace {
	return api.Trace{ID: id, Provider: provider, Timestamp: ts, LatencyMS: latency}
}

func TestBucketLabel(t *testing.T) {
	got := BucketLabel(time.Date(2026, 2, 5, 9, 41, 0, 0, time.Local))
	if got != "2/5 9:00" {
		t.Errorf("want 2/5 9:00, got %q", got)
	}
	got = BucketLabel(time.Date(2026, 12, 25, 0, 0, 0, 0, time.Local))
	if got != "12/25 0:00" {
		t.Errorf("want 12/25 0:00, got %q", got)
	}
}

func TestLatencySeries_MeanPerProvider(t *testing.T) {
	traces := []api.Trace{
		trace("a", "gemini", at(15, 10, 5), 100),
		trace("b", "gemini", at(15, 10, 45), 300),
		trace("c", "anthropic", at(15, 10, 30), 900),
		trace("d", "anthropic", at(15, 11, 10), 500),
	}

	series := LatencySeries(traces)
	if len(series) != 2 {
		t.Fatalf("want 2 buckets, got %d", len(series))
	}

	first := series[0]
	if first.Label != "2/15 10:00" {
		t.Errorf("first label: want 2/15 10:00, got %q", first.Label)
	}
	if first.ByProvider["gemini"] != 200 {
		t.Errorf("gemini mean: want 200, got %f", first.ByProvider["gemini"])
	}
	if first.ByProvider["anthropic"] != 900 {
		t.Errorf("anthropic mean: want 900, got %f", first.ByProvider["anthropic"])
	}

	second := series[1]
	if _, ok := second.ByProvider["gemini"]; ok {
		t.Error("gemini has no traces in 11:00 and must have no key")
	}
	if second.ByProvider["anthropic"] != 500 {
		t.Errorf("anthropic 11:00 mean: want 500, got %f", second.ByProvider["anthropic"])
	}
}

func TestLatencySeries_MeanIsNotRounded(t *testing.T) {
	traces := []api.Trace{
		trace("a", "gemini", at(15, 10, 0), 100),
		trace("b", "gemini", at(15, 10, 1), 101),
	}
	series := LatencySeries(traces)
	if series[0].ByProvider["gemini"] != 100.5 {
		t.Errorf("want 100.5, got %f", series[0].ByProvider["gemini"])
	}
}

func TestLatencySeries_ChronologicalDiscoveryOrder(t *testing.T) {
	traces := []api.Trace{
		trace("late", "gemini", at(16, 8, 0), 1),
		trace("early", "gemini", at(15, 23, 0), 1),
		trace("mid", "gemini", at(16, 1, 0), 1),
	}
	series := LatencySeries(traces)
	var labels []string
	for _, b := range series {
		labels = append(labels, b.Label)
	}
	want := []string{"2/15 23:00", "2/16 1:00", "2/16 8:00"}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("want %v, got %v", want, labels)
	}
}

func TestLatencySeries_PermutationInvariant(t *testing.T) {
	var traces []api.Trace
	providers := []string{"gemini", "anthropic", "ollama"}
	for i := 0; i < 60; i++ {
		traces = append(traces, trace(
			string(rune('a'+i%26))+string(rune('a'+i/26)),
			providers[i%3],
			at(15+i/24, i%24, (i*7)%60),
			float64(i)*13.37+0.1,
		))
	}
	// Same-timestamp ties must not change sums either.
	traces = append(traces,
		trace("tie-1", "gemini", at(15, 3, 0), 0.1),
		trace("tie-2", "gemini", at(15, 3, 0), 0.2),
		trace("tie-3", "gemini", at(15, 3, 0), 0.3),
	)

	want := LatencySeries(traces)
	wantTokens := TokenSeries(traces)

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 10; round++ {
		shuffled := make([]api.Trace, len(traces))
		copy(shuffled, traces)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		if got := LatencySeries(shuffled); !reflect.DeepEqual(got, want) {
			t.Fatalf("round %d: latency series differs after shuffle", round)
		}
		if got := TokenSeries(shuffled); !reflect.DeepEqual(got, wantTokens) {
			t.Fatalf("round %d: token series differs after shuffle", round)
		}
	}
}

func TestLatencySeries_DoesNotMutateInput(t *testing.T) {
	traces := []api.Trace{
		trace("b", "gemini", at(15, 11, 0), 1),
		trace("a", "gemini", at(15, 10, 0), 1),
	}
	_ = LatencySeries(traces)
	if traces[0].ID != "b" {
		t.Error("input slice was reordered")
	}
}

func TestLatencySeries_Empty(t *testing.T) {
	if got := LatencySeries(nil); len(got) != 0 {
		t.Errorf("want empty series, got %d buckets", len(got))
	}
}

func TestTokenSeries_MissingCountsAreZero(t *testing.T) {
	a := trace("a", "gemini", at(15, 10, 0), 1)
	a.PromptTokens = i64(10)
	a.CompletionTokens = i64(5)
	b := trace("b", "anthropic", at(15, 10, 30), 1)
	b.CompletionTokens = i64(7)

	series := TokenSeries([]api.Trace{a, b})
	if len(series) != 1 {
		t.Fatalf("want 1 bucket, got %d", len(series))
	}
	if series[0].Prompt != 10 || series[0].Completion != 12 {
		t.Errorf("want {prompt:10 completion:12}, got {prompt:%d completion:%d}", series[0].Prompt, series[0].Completion)
	}
}

func TestSortLatencyBuckets(t *testing.T) {
	buckets := []LatencyBucket{
		{Label: "b", Start: time.Date(2026, 2, 15, 11, 0, 0, 0, time.Local)},
		{Label: "a", Start: time.Date(2026, 2, 15, 10, 0, 0, 0, time.Local)},
	}
	SortLatencyBuckets(buckets)
	if buckets[0].Label != "a" {
		t.Errorf("want a first, got %s", buckets[0].Label)
	}

	tokens := []TokenBucket{
		{Label: "y", Start: time.Date(2026, 2, 16, 0, 0, 0, 0, time.Local)},
		{Label: "x", Start: time.Date(2026, 2, 15, 0, 0, 0, 0, time.Local)},
	}
	SortTokenBuckets(tokens)
	if tokens[0].Label != "x" {
		t.Errorf("want x first, got %s", tokens[0].Label)
	}
}

func TestProviders(t *testing.T) {
	series := []LatencyBucket{
		{ByProvider: map[string]float64{"ollama": 1}},
		{ByProvider: map[string]float64{"anthropic": 1, "ollama": 2}},
	}
	got := Providers(series)
	want := []string{"anthropic", "ollama"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}
}

func TestRatingDistribution_FiveBins(t *testing.T) {
	var traces []api.Trace
	for _, s := range []int{1, 3, 3, 5, 5, 5} {
		tr := trace("x", "gemini", at(15, 10, 0), 1)
		tr.RatingScore = score(s)
		traces = append(traces, tr)
	}

	bins := RatingDistribution(traces)
	if len(bins) != 5 {
		t.Fatalf("want 5 bins, got %d", len(bins))
	}
	wantCounts := []int{1, 0, 2, 0, 3}
	total := 0
	for i, b := range bins {
		if b.Rating != i+1 {
			t.Errorf("bin %d: want rating %d, got %d", i, i+1, b.Rating)
		}
		if b.Count != wantCounts[i] {
			t.Errorf("bin %d: want count %d, got %d", i, wantCounts[i], b.Count)
		}
		total += b.Count
	}
	if total != 6 {
		t.Errorf("sum of counts: want 6, got %d", total)
	}
}

func TestRatingDistribution_IgnoresInvalidScores(t *testing.T) {
	valid := trace("v", "gemini", at(15, 10, 0), 1)
	valid.RatingScore = score(4)
	base := RatingDistribution([]api.Trace{valid})

	zero := trace("z", "gemini", at(15, 10, 0), 1)
	zero.RatingScore = score(0)
	six := trace("s", "gemini", at(15, 10, 0), 1)
	six.RatingScore = score(6)
	unrated := trace("u", "gemini", at(15, 10, 0), 1)

	got := RatingDistribution([]api.Trace{valid, zero, six, unrated})
	if !reflect.DeepEqual(got, base) {
		t.Errorf("invalid scores changed distribution: want %v, got %v", base, got)
	}
}

func TestRatingDistribution_EmptyInput(t *testing.T) {
	bins := RatingDistribution(nil)
	if len(bins) != 5 {
		t.Fatalf("want 5 bins, got %d", len(bins))
	}
	if HasRatings(bins) {
		t.Error("empty input should have no ratings")
	}
}
