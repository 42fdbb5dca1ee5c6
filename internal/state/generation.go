package state

import "sync/atomic"

// Generation stamps fetches for one view. Every request takes the next
// number from Next; when the result arrives it is applied only if Accept
// reports that no newer request has been issued since. In-flight requests
// are never cancelled, their results are just dropped.
//
// A Generation must not be copied after first use.
type Generation struct {
	issued atomic.Uint64
}

// Next issues a new generation number, superseding all earlier ones.
func (g *Generation) Next() uint64 {
	return g.issued.Add(1)
}

// Current returns the most recently issued generation number, or 0.
func (g *Generation) Current() uint64 {
	return g.issued.Load()
}

// Accept reports whether seq is still the latest issued generation.
func (g *Generation) Accept(seq uint64) bool {
	return seq != 0 && g.issued.CompareAndSwap(seq, seq)
}
