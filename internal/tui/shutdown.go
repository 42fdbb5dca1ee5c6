package tui

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ShutdownManager tears down the background pieces that outlive the TUI
// loop. Shutdown runs at most once, so it is safe to call from both the
// quit key and the program's exit path.
type ShutdownManager struct {
	// DrainTimeout bounds the whole sequence.
	DrainTimeout time.Duration

	// CloseRecorder flushes queued snapshot batches.
	CloseRecorder func(timeout time.Duration)

	// ShutdownTelemetry flushes spans and metrics.
	ShutdownTelemetry func(ctx context.Context) error

	// CloseStore closes the snapshot database.
	CloseStore func() error

	once sync.Once
	err  error
}

func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown drains the recorder before closing the store it writes to, then
// flushes telemetry so the final round trips are exported.
func (sm *ShutdownManager) Shutdown() error {
	sm.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
		defer cancel()

		var errs []error
		if sm.CloseRecorder != nil {
			sm.CloseRecorder(sm.DrainTimeout)
		}
		if sm.CloseStore != nil {
			if err := sm.CloseStore(); err != nil {
				errs = append(errs, err)
			}
		}
		if sm.ShutdownTelemetry != nil {
			if err := sm.ShutdownTelemetry(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		sm.err = errors.Join(errs...)
	})
	return sm.err
}
