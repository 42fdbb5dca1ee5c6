package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

func sampleRun(t *testing.T) api.BenchRunDetail {
	t.Helper()
	raw := `{
		"id": "run-7",
		"scenario_id": "recall-basic",
		"title": "Recall <basics>",
		"provider": "ollama",
		"model": "llama3",
		"started_at": "2026-02-16T10:00:00Z",
		"ended_at": null,
		"notes": "first pass",
		"summary": {"scores": {"score_overall": 0.8125}},
		"scores": {"score_recall": 0.75, "score_consistency": 0.875},
		"turns": [
			{"idx": 0, "role": "user", "content": "My cat is **Miso**.", "response": "Noted! <script>alert(1)</script>", "latency_ms": 1250.4, "trace_id": "t1"}
		],
		"probes": [
			{"idx": 0, "probe_id": "p-cat", "probe_type": "recall", "question": "What is my cat called?", "response": "Your cat is *Miso*.", "score": 1}
		]
	}`
	var run api.BenchRunDetail
	if err := json.Unmarshal([]byte(raw), &run); err != nil {
		t.Fatalf("decoding sample run: %v", err)
	}
	return run
}

func render(t *testing.T, run api.BenchRunDetail) string {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	var sb strings.Builder
	if err := r.Render(&sb, run, time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return sb.String()
}

func TestRender_Metadata(t *testing.T) {
	out := render(t, sampleRun(t))

	for _, want := range []string{
		"<title>Recall &lt;basics&gt; · fa-top bench</title>",
		"<td>recall-basic</td>",
		"<td>ollama / llama3</td>",
		"<td>0.81</td>",
		"<p>first pass</p>",
		"Probes (1)",
		"Turns (1)",
		"1,250 ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("want output to contain %q", want)
		}
	}
	if !strings.Contains(out, "<tr><td>Ended</td><td>-</td></tr>") {
		t.Error("want missing end time rendered as -")
	}
}

func TestRender_ScoresSortedAndStripped(t *testing.T) {
	out := render(t, sampleRun(t))

	consistency := strings.Index(out, "<td>consistency</td>")
	recall := strings.Index(out, "<td>recall</td>")
	if consistency < 0 || recall < 0 {
		t.Fatalf("want both score rows, got consistency=%d recall=%d", consistency, recall)
	}
	if consistency > recall {
		t.Error("want score rows sorted by metric")
	}
	if strings.Contains(out, "score_recall") {
		t.Error("want score_ prefix stripped")
	}
}

func TestRender_MarkdownSanitized(t *testing.T) {
	out := render(t, sampleRun(t))

	if !strings.Contains(out, "<strong>Miso</strong>") {
		t.Error("want turn content rendered as markdown")
	}
	if !strings.Contains(out, "<em>Miso</em>") {
		t.Error("want probe response rendered as markdown")
	}
	if strings.Contains(out, "<script>") {
		t.Error("want script tags stripped from responses")
	}
}

func TestRender_EmptyRun(t *testing.T) {
	out := render(t, api.BenchRunDetail{BenchRun: api.BenchRun{ID: "run-empty"}})

	if !strings.Contains(out, "<h1>run-empty</h1>") {
		t.Error("want run id as heading when title is empty")
	}
	if !strings.Contains(out, "No probes recorded.") || !strings.Contains(out, "No turns recorded.") {
		t.Error("want empty placeholders for probes and turns")
	}
	if !strings.Contains(out, "<tr><td>Overall</td><td>-</td></tr>") {
		t.Error("want missing overall score rendered as -")
	}
}
