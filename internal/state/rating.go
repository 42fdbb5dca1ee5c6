package state

import "github.com/nixlim/fa-top/internal/api"

// Rating is the 1-5 rating widget of one trace. Scores are applied
// optimistically; a failed rate restores the previous score, a failed
// note save keeps whatever the user typed.
type Rating struct {
	TraceID  string
	Score    int // 0 when unrated
	Note     string
	ShowNote bool
	Saving   bool
	Err      error

	prev    int
	pending ratingOp
}

type ratingOp int

const (
	opNone ratingOp = iota
	opRate
	opNote
)

// NewRating seeds the widget from the trace's stored rating.
func NewRating(t api.Trace) Rating {
	r := Rating{TraceID: t.ID}
	if t.RatingScore != nil {
		r.Score = *t.RatingScore
	}
	if t.RatingNote != nil {
		r.Note = *t.RatingNote
		r.ShowNote = r.Note != ""
	}
	return r
}

// Rated reports whether a score has been chosen.
func (r *Rating) Rated() bool { return r.Score > 0 }

// Rate applies score v ahead of the save. It reports false when v is out
// of range or a save is already in flight; otherwise the caller sends
// Score and Note and reports back through Done.
func (r *Rating) Rate(v int) bool {
	if r.Saving || v < 1 || v > 5 {
		return false
	}
	r.prev = r.Score
	r.Score = v
	r.Saving = true
	r.Err = nil
	r.pending = opRate
	return true
}

// SaveNote starts saving the current note with the current score. A note
// cannot be saved before a score is chosen.
func (r *Rating) SaveNote() bool {
	if r.Saving || !r.Rated() {
		return false
	}
	r.Saving = true
	r.Err = nil
	r.pending = opNote
	return true
}

// Done completes the in-flight save. On a failed rate the previous score
// is restored.
func (r *Rating) Done(err error) {
	if err != nil {
		r.Err = err
		if r.pending == opRate {
			r.Score = r.prev
		}
	}
	r.Saving = false
	r.pending = opNone
}
