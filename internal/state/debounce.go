package state

import "time"

// DefaultDebounce is the quiet period before search text is applied.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer holds the latest input until it has been quiet for Delay.
// The caller schedules a timer for each Push and hands its number back to
// Fire; only the timer of the last Push yields a value.
type Debouncer struct {
	Delay time.Duration

	gen     Generation
	pending string
	applied string
}

// NewDebouncer returns a debouncer with the given delay, or
// DefaultDebounce when delay is not positive.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{Delay: delay}
}

// Push records v as the latest input and returns the timer number.
func (d *Debouncer) Push(v string) uint64 {
	d.pending = v
	return d.gen.Next()
}

// Fire returns the pending input when seq belongs to the last Push and the
// value differs from the one last applied.
func (d *Debouncer) Fire(seq uint64) (string, bool) {
	if !d.gen.Accept(seq) || d.pending == d.applied {
		return "", false
	}
	d.applied = d.pending
	return d.applied, true
}

// Value is the input most recently applied by Fire.
func (d *Debouncer) Value() string {
	return d.applied
}
