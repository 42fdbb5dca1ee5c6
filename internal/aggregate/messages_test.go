package aggregate

import (
	"testing"

	"github.com/nixlim/fa-top/internal/api"
)

func TestGroupByDay(t *testing.T) {
	msgs := []api.AdminMessage{
		{ID: "1", Content: "a", Timestamp: at(16, 9, 0)},
		{ID: "2", Content: "b", Timestamp: at(16, 8, 0)},
		{ID: "3", Content: "c", Timestamp: at(15, 23, 0)},
	}

	groups := GroupByDay(msgs)
	if len(groups) != 2 {
		t.Fatalf("want 2 groups, got %d", len(groups))
	}
	if groups[0].Day != "Monday, February 16, 2026" {
		t.Errorf("want Monday, February 16, 2026, got %q", groups[0].Day)
	}
	if len(groups[0].Messages) != 2 || groups[0].Messages[0].ID != "1" {
		t.Errorf("first group: want messages 1,2 in order, got %+v", groups[0].Messages)
	}
	if groups[1].Messages[0].ID != "3" {
		t.Errorf("second group: want message 3, got %s", groups[1].Messages[0].ID)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Errorf("want short, got %q", got)
	}
	if got := Preview("abcdefghij", 4); got != "abcd..." {
		t.Errorf("want abcd..., got %q", got)
	}
	if got := Preview("héllo wörld", 5); got != "héllo..." {
		t.Errorf("want héllo..., got %q", got)
	}
}
