// Package state holds the client-side view state that outlives a single
// fetch: the chat transcript with its optimistic send, the rating widget,
// pagination offsets and the generation counters that keep stale fetch
// results out of the views.
//
// Values in this package are owned by one event loop. Only Generation is
// safe to share across goroutines.
package state

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nixlim/fa-top/internal/api"
)

// TempIDPrefix marks a message that has not been confirmed by the server.
const TempIDPrefix = "temp-"

// ErrSendInFlight is returned by Begin while another send is pending.
var ErrSendInFlight = errors.New("a message is already being sent")

// Conversation is the chat transcript in display order, oldest first.
type Conversation struct {
	Messages []api.Message
	Err      error

	sending   string
	loading   bool
	hasMore   bool
	cursor    *string
	newTempID func() string
}

// NewConversation returns an empty transcript.
func NewConversation() *Conversation {
	return &Conversation{
		newTempID: func() string { return TempIDPrefix + uuid.NewString() },
	}
}

// Pending is a provisional user record awaiting the server.
type Pending struct {
	TempID  string
	Content string
	SentAt  api.Timestamp
}

// Sending reports whether an optimistic send is outstanding.
func (c *Conversation) Sending() bool { return c.sending != "" }

// Loading reports whether a history page is being fetched.
func (c *Conversation) Loading() bool { return c.loading }

// HasMore reports whether older history is available.
func (c *Conversation) HasMore() bool { return c.hasMore && c.cursor != nil }

// Begin appends a provisional user record for content and returns it.
// The transcript reads [..., temp] until Confirm or Rollback is called
// with the returned Pending.
func (c *Conversation) Begin(content string, now time.Time) (Pending, error) {
	if c.sending != "" {
		return Pending{}, ErrSendInFlight
	}
	p := Pending{
		TempID:  c.newTempID(),
		Content: content,
		SentAt:  api.Timestamp{Time: now.UTC()},
	}
	c.Err = nil
	c.sending = p.TempID
	c.Messages = append(c.Messages, api.Message{
		ID:        p.TempID,
		Role:      api.RoleUser,
		Content:   p.Content,
		Timestamp: p.SentAt,
	})
	return p, nil
}

// Confirm replaces the provisional record with the server-confirmed user
// echo followed by the assistant reply.
func (c *Conversation) Confirm(p Pending, resp *api.ChatResponse) {
	c.Messages = c.without(p.TempID)
	c.Messages = append(c.Messages,
		api.Message{
			ID:        "user-" + resp.ID,
			Role:      api.RoleUser,
			Content:   p.Content,
			Timestamp: p.SentAt,
		},
		api.Message{
			ID:        resp.ID,
			Role:      api.RoleAssistant,
			Content:   resp.Response,
			Timestamp: resp.Timestamp,
		},
	)
	c.finishSend(p)
}

// Rollback removes the provisional record and records err. The transcript
// is left exactly as it was before Begin.
func (c *Conversation) Rollback(p Pending, err error) {
	c.Messages = c.without(p.TempID)
	c.Err = err
	c.finishSend(p)
}

func (c *Conversation) finishSend(p Pending) {
	if c.sending == p.TempID {
		c.sending = ""
	}
}

func (c *Conversation) without(id string) []api.Message {
	out := make([]api.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// BeginLoad marks the initial history page as loading.
func (c *Conversation) BeginLoad() {
	c.loading = true
}

// SetHistory replaces the transcript with the most recent page. Pages
// arrive newest first and are reversed for display.
func (c *Conversation) SetHistory(resp *api.HistoryResponse) {
	c.loading = false
	c.Messages = reversed(resp.Messages)
	c.hasMore = resp.HasMore
	c.cursor = resp.NextCursor
}

// BeginLoadOlder returns the cursor for the next older page. It reports
// false, and changes nothing, when there is no more history or a page is
// already loading.
func (c *Conversation) BeginLoadOlder() (string, bool) {
	if !c.HasMore() || c.loading {
		return "", false
	}
	c.loading = true
	return *c.cursor, true
}

// PrependOlder puts an older page in front of the transcript.
func (c *Conversation) PrependOlder(resp *api.HistoryResponse) {
	c.loading = false
	older := reversed(resp.Messages)
	c.Messages = append(older, c.Messages...)
	c.hasMore = resp.HasMore
	c.cursor = resp.NextCursor
}

// FailLoad ends a history fetch with err, keeping the messages already
// shown.
func (c *Conversation) FailLoad(err error) {
	c.loading = false
	c.Err = err
}

func reversed(msgs []api.Message) []api.Message {
	out := make([]api.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
