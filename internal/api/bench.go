package api

import (
	"bytes"
	"encoding/json"
	"sort"
)

// OverallMetric is the summary score key for a whole benchmark run.
const OverallMetric = "score_overall"

// RunSummary is the decoded form of a benchmark run's free-form summary
// object. Present is false when the backend sent null or a non-object
// value; Scores only holds the numeric entries of summary.scores.
type RunSummary struct {
	Present bool
	Scores  map[string]float64
	Extra   map[string]json.RawMessage
}

func (s *RunSummary) UnmarshalJSON(data []byte) error {
	*s = RunSummary{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil
	}
	s.Present = true

	if raw, ok := fields["scores"]; ok {
		var scores map[string]json.RawMessage
		if err := json.Unmarshal(raw, &scores); err == nil {
			for name, v := range scores {
				var f float64
				if err := json.Unmarshal(v, &f); err != nil {
					continue
				}
				if s.Scores == nil {
					s.Scores = make(map[string]float64)
				}
				s.Scores[name] = f
			}
		}
		delete(fields, "scores")
	}
	if len(fields) > 0 {
		s.Extra = fields
	}
	return nil
}

func (s RunSummary) MarshalJSON() ([]byte, error) {
	if !s.Present {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(s.Extra)+1)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.Scores != nil {
		out["scores"] = s.Scores
	}
	return json.Marshal(out)
}

// Score returns the named summary score, if the summary carries one.
func (s RunSummary) Score(metric string) (float64, bool) {
	if !s.Present || s.Scores == nil {
		return 0, false
	}
	v, ok := s.Scores[metric]
	return v, ok
}

// Overall returns the run's overall score.
func (s RunSummary) Overall() (float64, bool) {
	return s.Score(OverallMetric)
}

// ScoreNames returns the summary score keys in sorted order.
func (s RunSummary) ScoreNames() []string {
	names := make([]string, 0, len(s.Scores))
	for k := range s.Scores {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type BenchRun struct {
	ID              string     `json:"id"`
	ScenarioID      string     `json:"scenario_id"`
	Title           string     `json:"title"`
	Provider        string     `json:"provider"`
	Model           string     `json:"model"`
	ContextMessages *int       `json:"context_messages"`
	StartedAt       Timestamp  `json:"started_at"`
	EndedAt         Timestamp  `json:"ended_at"`
	Notes           *string    `json:"notes"`
	Summary         RunSummary `json:"summary"`
}

type BenchRunsResponse struct {
	Runs []BenchRun `json:"runs"`
}

type BenchTurn struct {
	Idx       int      `json:"idx"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Response  *string  `json:"response"`
	LatencyMS *float64 `json:"latency_ms"`
	TraceID   *string  `json:"trace_id"`
}

type BenchProbe struct {
	Idx       int            `json:"idx"`
	ProbeID   string         `json:"probe_id"`
	ProbeType string         `json:"probe_type"`
	Question  string         `json:"question"`
	Expected  map[string]any `json:"expected"`
	Response  string         `json:"response"`
	Score     float64        `json:"score"`
	Metrics   map[string]any `json:"metrics"`
}

type BenchRunDetail struct {
	BenchRun
	Turns  []BenchTurn        `json:"turns"`
	Probes []BenchProbe       `json:"probes"`
	Scores map[string]float64 `json:"scores"`
}

type BenchSummaryRow struct {
	RunID      string    `json:"run_id"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	ScenarioID string    `json:"scenario_id"`
	StartedAt  Timestamp `json:"started_at"`
}

type BenchSummaryResponse struct {
	Rows []BenchSummaryRow `json:"rows"`
}
