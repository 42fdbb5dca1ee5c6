package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/state"
)

func chatBackend() *mockBackend {
	cursor := "c1"
	return &mockBackend{
		history: map[string]*api.HistoryResponse{
			"": {
				Messages:   []api.Message{{ID: "a", Role: api.RoleAssistant, Content: "welcome"}},
				HasMore:    true,
				NextCursor: &cursor,
			},
			"c1": {
				// Newest first, as the backend sends them.
				Messages: []api.Message{
					{ID: "o2", Role: api.RoleAssistant, Content: "older reply"},
					{ID: "o1", Role: api.RoleUser, Content: "older question"},
				},
			},
		},
	}
}

func messageIDs(m Model) []string {
	var ids []string
	for _, msg := range m.chat.conv.Messages {
		if strings.HasPrefix(msg.ID, state.TempIDPrefix) {
			ids = append(ids, "temp")
			continue
		}
		ids = append(ids, msg.ID)
	}
	return ids
}

func TestChat_OptimisticSendConfirmed(t *testing.T) {
	b := chatBackend()
	b.chatResp = &api.ChatResponse{ID: "r1", Response: "hi there"}
	m := enter(t, newTestModel(b), ViewChat)

	m, _ = press(m, "i")
	m.input.SetValue("hello")
	m, cmd := press(m, "enter")

	if got := strings.Join(messageIDs(m), ","); got != "a,temp" {
		t.Fatalf("want a,temp while sending, got %s", got)
	}
	if !strings.Contains(m.View(), "(sending...)") {
		t.Error("want pending marker in view")
	}
	if m.input.Value() != "" {
		t.Errorf("want input cleared, got %q", m.input.Value())
	}

	m = run(t, m, cmd)
	if got := strings.Join(messageIDs(m), ","); got != "a,user-r1,r1" {
		t.Errorf("want a,user-r1,r1 after reply, got %s", got)
	}
	if len(b.sent) != 1 || b.sent[0] != "hello" {
		t.Errorf("want hello sent once, got %v", b.sent)
	}
}

func TestChat_OptimisticSendRolledBack(t *testing.T) {
	b := chatBackend()
	b.chatErr = errors.New("provider unavailable")
	m := enter(t, newTestModel(b), ViewChat)

	m, _ = press(m, "i")
	m.input.SetValue("hello")
	m, cmd := press(m, "enter")
	m = run(t, m, cmd)

	if got := strings.Join(messageIDs(m), ","); got != "a" {
		t.Errorf("want transcript restored to a, got %s", got)
	}
	if m.chat.conv.Err == nil {
		t.Fatal("want send error recorded")
	}
	if !strings.Contains(m.View(), "provider unavailable") {
		t.Error("want error shown")
	}
}

func TestChat_SecondSendRefusedWhileInFlight(t *testing.T) {
	b := chatBackend()
	b.chatResp = &api.ChatResponse{ID: "r1", Response: "ok"}
	m := enter(t, newTestModel(b), ViewChat)

	m, _ = press(m, "i")
	m.input.SetValue("one")
	m, _ = press(m, "enter")
	m.input.SetValue("two")
	m, cmd := press(m, "enter")

	if cmd != nil {
		t.Error("want no second send")
	}
	if m.status != "Still waiting for the previous reply" {
		t.Errorf("want in-flight status, got %q", m.status)
	}
	if m.input.Value() != "two" {
		t.Errorf("want unsent text kept, got %q", m.input.Value())
	}
}

func TestChat_BlankInputIgnored(t *testing.T) {
	m := enter(t, newTestModel(chatBackend()), ViewChat)
	m, _ = press(m, "i")
	m.input.SetValue("   ")
	_, cmd := press(m, "enter")
	if cmd != nil {
		t.Error("want blank message ignored")
	}
}

func TestChat_LoadOlderPrepends(t *testing.T) {
	m := enter(t, newTestModel(chatBackend()), ViewChat)
	if !strings.Contains(m.View(), "o: load older messages") {
		t.Error("want load-older hint")
	}

	m, cmd := press(m, "o")
	m = run(t, m, cmd)

	if got := strings.Join(messageIDs(m), ","); got != "o1,o2,a" {
		t.Errorf("want o1,o2,a, got %s", got)
	}
	if m.chat.conv.HasMore() {
		t.Error("want no more history")
	}

	_, cmd = press(m, "o")
	if cmd != nil {
		t.Error("want load-older to be a no-op without a cursor")
	}
}

func TestChat_EmptyPlaceholder(t *testing.T) {
	m := enter(t, newTestModel(&mockBackend{}), ViewChat)
	if !strings.Contains(m.View(), "No messages yet") {
		t.Error("want empty transcript placeholder")
	}
}
