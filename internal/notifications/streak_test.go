package notifications_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/status"
)

type recordingService struct {
	mu        sync.Mutex
	release   chan struct{}
	stalled   []int
	recovered []int
}

func (r *recordingService) wait() {
	if r.release != nil {
		<-r.release
	}
}

func (r *recordingService) NotifyDaemonStarted(context.Context, string) error { return nil }
func (r *recordingService) NotifyUploadStalled(ctx context.Context, failures int, _ string) error {
	r.wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stalled = append(r.stalled, failures)
	return nil
}
func (r *recordingService) NotifyUploadRecovered(_ context.Context, failures int) error {
	r.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recovered = append(r.recovered, failures)
	return nil
}
func (r *recordingService) NotifyError(context.Context, error, string) error { return nil }
func (r *recordingService) TestNotification(context.Context) error           { return nil }

func TestStreakSinkAlertsOncePerStreak(t *testing.T) {
	svc := &recordingService{}
	sink := notifications.NewStreakSink(svc, 3, logging.NewNop())
	ctx := context.Background()

	for _, failures := range []int{0, 1, 2, 3, 4, 5, 0, 0, 1, 3, 0} {
		if err := sink.Publish(ctx, status.Snapshot{ConsecutiveFailures: failures}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(svc.stalled) != 2 || svc.stalled[0] != 3 || svc.stalled[1] != 3 {
		t.Fatalf("unexpected stalled alerts %v", svc.stalled)
	}
	if len(svc.recovered) != 2 || svc.recovered[0] != 5 || svc.recovered[1] != 3 {
		t.Fatalf("unexpected recovery alerts %v", svc.recovered)
	}
}

func TestStreakSinkDisabled(t *testing.T) {
	svc := &recordingService{}
	sink := notifications.NewStreakSink(svc, 0, logging.NewNop())
	_ = sink.Publish(context.Background(), status.Snapshot{ConsecutiveFailures: 100})
	_ = sink.Close()
	if len(svc.stalled) != 0 {
		t.Fatal("expected no alerts with zero threshold")
	}
}

func TestStreakSinkPublishDoesNotWaitOnService(t *testing.T) {
	svc := &recordingService{release: make(chan struct{})}
	sink := notifications.NewStreakSink(svc, 1, logging.NewNop())

	returned := make(chan struct{})
	go func() {
		_ = sink.Publish(context.Background(), status.Snapshot{ConsecutiveFailures: 1})
		_ = sink.Publish(context.Background(), status.Snapshot{ConsecutiveFailures: 0})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled notification service")
	}

	close(svc.release)
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(svc.stalled) != 1 || len(svc.recovered) != 1 || svc.recovered[0] != 1 {
		t.Fatalf("queued alerts not delivered: stalled=%v recovered=%v", svc.stalled, svc.recovered)
	}
}

func TestStreakSinkPublishCancelledContextStillDelivers(t *testing.T) {
	svc := &recordingService{}
	sink := notifications.NewStreakSink(svc, 2, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	_ = sink.Publish(ctx, status.Snapshot{ConsecutiveFailures: 2})
	cancel()
	_ = sink.Close()
	if len(svc.stalled) != 1 {
		t.Fatalf("expected alert after cancellation, got %v", svc.stalled)
	}
}

func TestStreakSinkCloseIsIdempotent(t *testing.T) {
	sink := notifications.NewStreakSink(&recordingService{}, 1, logging.NewNop())
	_ = sink.Close()
	_ = sink.Close()
	if err := sink.Publish(context.Background(), status.Snapshot{ConsecutiveFailures: 5}); err != nil {
		t.Fatalf("Publish after Close: %v", err)
	}
}
