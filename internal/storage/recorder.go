package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

const (
	recorderQueueSize = 16
	saveTimeout       = 10 * time.Second
)

type recordOp struct {
	source string
	traces []api.Trace
}

// Recorder saves trace batches to a Store off the caller's goroutine.
// Record never blocks: when the queue is full the batch is dropped and
// counted.
type Recorder struct {
	store   Store
	queue   chan recordOp
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	saved   atomic.Int64
}

func NewRecorder(store Store) *Recorder {
	return newRecorderWithQueueSize(store, recorderQueueSize)
}

func newRecorderWithQueueSize(store Store, size int) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan recordOp, size),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record queues traces for saving under source.
func (r *Recorder) Record(source string, traces []api.Trace) {
	if len(traces) == 0 {
		return
	}
	batch := make([]api.Trace, len(traces))
	copy(batch, traces)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- recordOp{source: source, traces: batch}:
	default:
		r.dropped.Add(1)
		log.Printf("WARNING: snapshot queue full, dropped %d traces", len(batch))
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for op := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if _, err := r.store.SaveTraces(ctx, op.source, op.traces); err != nil {
			log.Printf("ERROR: saving snapshot: %v", err)
		} else {
			r.saved.Add(int64(len(op.traces)))
		}
		cancel()
	}
}

// Dropped is the number of batches discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Saved is the number of traces written so far.
func (r *Recorder) Saved() int64 { return r.saved.Load() }

// Close stops accepting batches and waits up to timeout for queued ones
// to be written. It does not close the underlying store.
func (r *Recorder) Close(timeout time.Duration) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(timeout):
		log.Printf("WARNING: snapshot recorder did not drain within %v", timeout)
	}
}
