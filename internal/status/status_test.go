package status_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"courier/internal/logging"
	"courier/internal/session"
	"courier/internal/status"
)

func TestSnapshotConvertsStats(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	pub := status.NewPublisher(nil, "dongle", logging.NewNop(), status.WithPID(42), status.WithClock(func() time.Time { return fixed }))
	stats := session.Stats{
		LastDuration:        2500 * time.Millisecond,
		LastSpeed:           4.2,
		LastFilename:        "/data/s1/qlog",
		ImmediateBytes:      12_999_999,
		ImmediateCount:      3,
		State:               "uploading",
		Network:             "wifi",
		Backoff:             400 * time.Millisecond,
		ConsecutiveFailures: 2,
	}
	snap := pub.Snapshot(stats)
	if snap.ImmediateQueueSize != 12 || snap.ImmediateQueueCount != 3 {
		t.Fatalf("unexpected immediate queue figures %+v", snap)
	}
	if snap.LastTimeSeconds != 2.5 || snap.BackoffSeconds != 0.4 {
		t.Fatalf("unexpected durations %+v", snap)
	}
	if snap.DeviceID != "dongle" || snap.PID != 42 || !snap.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected identity fields %+v", snap)
	}
	if stats.LastFilename != "/data/s1/qlog" {
		t.Fatal("Snapshot must not modify stats")
	}
}

func TestFileSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "status.json")
	sink := status.NewFileSink(path)
	pub := status.NewPublisher(sink, "dongle", logging.NewNop())

	snap := pub.Snapshot(session.Stats{State: "idle", Network: "none", UpdatedAt: time.Now()})
	pub.Publish(context.Background(), snap)

	got, err := status.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.State != "idle" || got.DeviceID != "dongle" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestPublishSwallowsSinkErrors(t *testing.T) {
	calls := 0
	failing := status.SinkFunc(func(context.Context, status.Snapshot) error {
		calls++
		return errors.New("disk full")
	})
	pub := status.NewPublisher(failing, "dongle", logging.NewNop())
	pub.Publish(context.Background(), status.Snapshot{})
	if calls != 1 {
		t.Fatalf("expected sink called once, got %d", calls)
	}

	var nilPub *status.Publisher
	nilPub.Publish(context.Background(), status.Snapshot{})
}

func TestFanoutPublishesToAll(t *testing.T) {
	var seen []string
	record := func(name string, err error) status.Sink {
		return status.SinkFunc(func(context.Context, status.Snapshot) error {
			seen = append(seen, name)
			return err
		})
	}
	fan := status.Fanout{record("a", errors.New("a failed")), nil, record("b", nil), status.NewLogSink(logging.NewNop())}
	err := fan.Publish(context.Background(), status.Snapshot{})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("expected both sinks called in order, got %v", seen)
	}
}
