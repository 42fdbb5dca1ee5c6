package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestShutdownManager_Order(t *testing.T) {
	var steps []string
	sm := NewShutdownManager()
	sm.CloseRecorder = func(timeout time.Duration) {
		if timeout != sm.DrainTimeout {
			t.Errorf("want drain timeout %v, got %v", sm.DrainTimeout, timeout)
		}
		steps = append(steps, "recorder")
	}
	sm.CloseStore = func() error {
		steps = append(steps, "store")
		return nil
	}
	sm.ShutdownTelemetry = func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("want telemetry shutdown bounded by a deadline")
		}
		steps = append(steps, "telemetry")
		return nil
	}

	if err := sm.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := strings.Join(steps, ","); got != "recorder,store,telemetry" {
		t.Errorf("want recorder,store,telemetry, got %s", got)
	}
}

func TestShutdownManager_RunsOnce(t *testing.T) {
	calls := 0
	sm := NewShutdownManager()
	sm.CloseStore = func() error {
		calls++
		return errors.New("disk gone")
	}

	err1 := sm.Shutdown()
	err2 := sm.Shutdown()
	if calls != 1 {
		t.Errorf("want 1 close, got %d", calls)
	}
	if err1 == nil || err2 == nil || !strings.Contains(err2.Error(), "disk gone") {
		t.Errorf("want the first error reported by every call, got %v / %v", err1, err2)
	}
}

func TestShutdownManager_NoHooks(t *testing.T) {
	if err := NewShutdownManager().Shutdown(); err != nil {
		t.Errorf("want nil, got %v", err)
	}
}
