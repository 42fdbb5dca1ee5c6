package state

import (
	"errors"
	"testing"

	"github.com/nixlim/fa-top/internal/api"
)

func TestNewRating_FromTrace(t *testing.T) {
	score := 4
	note := "good recall"
	r := NewRating(api.Trace{ID: "t1", RatingScore: &score, RatingNote: &note})
	if r.TraceID != "t1" || r.Score != 4 || r.Note != note || !r.ShowNote {
		t.Errorf("got %+v", r)
	}

	unrated := NewRating(api.Trace{ID: "t2"})
	if unrated.Rated() || unrated.ShowNote {
		t.Errorf("want unrated widget, got %+v", unrated)
	}
}

func TestRating_RateFailureRestoresPrevious(t *testing.T) {
	r := Rating{TraceID: "t1", Score: 2}
	if !r.Rate(5) {
		t.Fatal("want Rate accepted")
	}
	if r.Score != 5 || !r.Saving {
		t.Fatalf("want optimistic score 5 while saving, got %d saving=%v", r.Score, r.Saving)
	}
	if r.Rate(3) {
		t.Error("want Rate rejected while saving")
	}

	r.Done(errors.New("failed to rate trace: 500"))
	if r.Score != 2 {
		t.Errorf("want previous score 2 restored, got %d", r.Score)
	}
	if r.Saving || r.Err == nil {
		t.Errorf("want idle with error, got saving=%v err=%v", r.Saving, r.Err)
	}
}

func TestRating_RateSuccessKeepsScore(t *testing.T) {
	var r Rating
	r.Rate(3)
	r.Done(nil)
	if r.Score != 3 || r.Err != nil {
		t.Errorf("want score 3 without error, got %d %v", r.Score, r.Err)
	}
}

func TestRating_RateOutOfRange(t *testing.T) {
	var r Rating
	for _, v := range []int{0, 6, -1} {
		if r.Rate(v) {
			t.Errorf("Rate(%d): want rejected", v)
		}
	}
	if r.Saving {
		t.Error("rejected rate must not start a save")
	}
}

func TestRating_SaveNote(t *testing.T) {
	var r Rating
	r.Note = "typed"
	if r.SaveNote() {
		t.Error("want note save rejected before a score is chosen")
	}

	r.Score = 4
	if !r.SaveNote() {
		t.Fatal("want note save accepted")
	}
	r.Done(errors.New("failed to rate trace: 502"))
	if r.Score != 4 || r.Note != "typed" {
		t.Errorf("failed note save must keep local state, got score=%d note=%q", r.Score, r.Note)
	}
}
