package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Timestamp accepts the backend's ISO-8601 strings, with or without a zone
// offset. Zone-less values are interpreted as UTC. JSON null decodes to the
// zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses s using the layouts accepted on the wire.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Message is one chat message as returned by /chat/history.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	ID        string    `json:"id"`
	Response  string    `json:"response"`
	Timestamp Timestamp `json:"timestamp"`
	TraceID   string    `json:"trace_id"`
}

type HistoryResponse struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	NextCursor *string   `json:"next_cursor"`
}

type ArchiveResponse struct {
	ArchivedCount int       `json:"archived_count"`
	ArchivedAt    Timestamp `json:"archived_at"`
}

type TraceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Trace is an immutable record of one request/response cycle against a
// backend-hosted model. Only the rating fields can change, and only on the
// backend via RateTrace.
type Trace struct {
	ID               string         `json:"id"`
	Timestamp        Timestamp      `json:"timestamp"`
	Provider         string         `json:"provider"`
	Model            string         `json:"model"`
	SystemPrompt     *string        `json:"system_prompt"`
	ContextMessages  []TraceMessage `json:"context_messages"`
	TriggerMessage   *TraceMessage  `json:"trigger_message"`
	RawMessagesIn    []TraceMessage `json:"raw_messages_in"`
	ResponseOut      string         `json:"response_out"`
	LatencyMS        float64        `json:"latency_ms"`
	PromptTokens     *int64         `json:"prompt_tokens"`
	CompletionTokens *int64         `json:"completion_tokens"`
	RatingScore      *int           `json:"rating_score"`
	RatingNote       *string        `json:"rating_note"`
	SessionID        *string        `json:"session_id"`
}

type TracesResponse struct {
	Traces []Trace `json:"traces"`
	Count  int     `json:"count"`
}

type RateRequest struct {
	Score int     `json:"score"`
	Note  *string `json:"note"`
}

type RateResponse struct {
	TraceID string  `json:"trace_id"`
	Score   int     `json:"score"`
	Note    *string `json:"note"`
}

type ConfigSnapshot struct {
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	ContextMessages int    `json:"context_messages"`
}

type EndedSession struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	StartedAt    Timestamp `json:"started_at"`
	EndedAt      Timestamp `json:"ended_at"`
}

type SessionRequest struct {
	Note *string `json:"note"`
}

type SessionResponse struct {
	SessionID      string         `json:"session_id"`
	EndedSession   *EndedSession  `json:"ended_session"`
	ConfigSnapshot ConfigSnapshot `json:"config_snapshot"`
}

type Session struct {
	ID             string         `json:"id"`
	StartedAt      Timestamp      `json:"started_at"`
	EndedAt        Timestamp      `json:"ended_at"`
	Note           *string        `json:"note"`
	ConfigSnapshot ConfigSnapshot `json:"config_snapshot"`
	MessageCount   int            `json:"message_count"`
	IsActive       bool           `json:"is_active"`
}

// Label is the human name used in pickers: the note when set, otherwise
// provider / model, with an "(active)" suffix for the active session.
func (s Session) Label() string {
	label := s.ConfigSnapshot.Provider + " / " + s.ConfigSnapshot.Model
	if s.Note != nil && *s.Note != "" {
		label = *s.Note
	}
	if s.IsActive {
		label += " (active)"
	}
	return label
}

type SessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type MessageStats struct {
	TotalMessages     int       `json:"total_messages"`
	UserMessages      int       `json:"user_messages"`
	AssistantMessages int       `json:"assistant_messages"`
	MessagesToday     int       `json:"messages_today"`
	FirstMessageAt    Timestamp `json:"first_message_at"`
	LastMessageAt     Timestamp `json:"last_message_at"`
}

type ProviderStats struct {
	Calls        int      `json:"calls"`
	AvgLatencyMS float64  `json:"avg_latency_ms"`
	AvgRating    *float64 `json:"avg_rating"`
}

type PerformanceStats struct {
	TotalCalls            int                      `json:"total_calls"`
	AvgLatencyMS          float64                  `json:"avg_latency_ms"`
	AvgTokensPerSec       *float64                 `json:"avg_tokens_per_sec"`
	TotalPromptTokens     int64                    `json:"total_prompt_tokens"`
	TotalCompletionTokens int64                    `json:"total_completion_tokens"`
	AvgRating             *float64                 `json:"avg_rating"`
	ByProvider            map[string]ProviderStats `json:"by_provider"`
}

type AdminMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
	SessionID *string   `json:"session_id"`
}

type AdminMessagesResponse struct {
	Messages []AdminMessage `json:"messages"`
	Total    int            `json:"total"`
}

// AdminMessageQuery selects a page of admin messages. Zero values are
// omitted from the request.
type AdminMessageQuery struct {
	Limit  int
	Offset int
	Role   string
	Query  string
}
