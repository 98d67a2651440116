package daemon_test

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"courier/internal/backoff"
	"courier/internal/catalog"
	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/logging"
	"courier/internal/netgate"
	"courier/internal/session"
	"courier/internal/status"
	"courier/internal/testsupport"
	"courier/internal/uploader"
)

type countingScanner struct {
	*catalog.Scanner
	scans int
}

func (c *countingScanner) Scan(ctx context.Context) []session.File {
	c.scans++
	return c.Scanner.Scan(ctx)
}

type snapshotLog struct {
	mu    sync.Mutex
	snaps []status.Snapshot
}

func (s *snapshotLog) Publish(_ context.Context, snap status.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *snapshotLog) last() status.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snaps[len(s.snaps)-1]
}

type harness struct {
	cfg       *config.Config
	root      string
	transport *testsupport.StubTransport
	markers   *testsupport.MemoryMarker
	scanner   *countingScanner
	sink      *snapshotLog
	provider  *netgate.Static
	now       time.Time
	loop      *daemon.Loop
}

func newHarness(t *testing.T, allowSleep bool, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Uploader.AllowSleep = allowSleep
	if mutate != nil {
		mutate(cfg)
	}
	h := &harness{
		cfg:       cfg,
		root:      cfg.Paths.RootDir,
		transport: testsupport.NewStubTransport(testsupport.Response{Code: 200}),
		markers:   testsupport.NewMemoryMarker(),
		sink:      &snapshotLog{},
		now:       time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		provider:  &netgate.Static{Value: netgate.State{Network: netgate.NetworkWifi}},
	}
	h.scanner = &countingScanner{Scanner: catalog.NewScanner(h.root, session.DefaultPriorities(), h.markers)}

	gate, err := netgate.NewGate(cfg.Uploader)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	stats := &session.Stats{}
	exec := uploader.New(h.transport, h.markers, cfg.Device.ID, stats, uploader.WithLogger(logging.NewNop()))
	ctrl := backoff.New(100*time.Millisecond, 120*time.Second, backoff.WithJitter(func(time.Duration) time.Duration { return 0 }))
	h.loop = daemon.NewLoop(daemon.LoopDeps{
		Provider:   h.provider,
		Gate:       gate,
		Scanner:    h.scanner,
		Uploader:   exec,
		Backoff:    ctrl,
		Publisher:  status.NewPublisher(h.sink, cfg.Device.ID, logging.NewNop()),
		Stats:      stats,
		AllowSleep: allowSleep,
	}, daemon.WithLoopLogger(logging.NewNop()), daemon.WithLoopClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) sentKeys() []string {
	var out []string
	for _, c := range h.transport.Calls() {
		out = append(out, c.RemoteKey)
	}
	return out
}

func TestStepGatedSkipsScan(t *testing.T) {
	h := newHarness(t, true, nil)
	testsupport.SessionTree(t, h.root, map[string]int64{"s1/qlog": 10})
	h.provider.Value = netgate.State{Network: netgate.NetworkNone}

	step := h.loop.Step(context.Background())
	if step.State != daemon.StateGated || step.Uploaded {
		t.Fatalf("expected gated step, got %+v", step)
	}
	if step.Sleep != 5*time.Second || !step.Wakeable {
		t.Fatalf("expected wakeable onroad sleep, got %v", step.Sleep)
	}
	if h.scanner.scans != 0 || len(h.transport.Calls()) != 0 {
		t.Fatalf("gated iteration must not scan or upload (scans=%d)", h.scanner.scans)
	}
	if snap := h.sink.last(); snap.State != daemon.StateGated || snap.Network != "none" {
		t.Fatalf("expected gated snapshot, got %+v", snap)
	}

	h.provider.Value.Offroad = true
	if step := h.loop.Step(context.Background()); step.Sleep != time.Minute {
		t.Fatalf("expected offroad sleep, got %v", step.Sleep)
	}
}

func TestStepGatedWithoutSleep(t *testing.T) {
	h := newHarness(t, false, nil)
	h.provider.Value = netgate.State{Network: netgate.NetworkNone}
	if step := h.loop.Step(context.Background()); step.Sleep != 0 {
		t.Fatalf("expected no sleep when sleeping is disabled, got %v", step.Sleep)
	}
}

func TestStepUploadsInPriorityOrder(t *testing.T) {
	h := newHarness(t, false, nil)
	testsupport.SessionTree(t, h.root, map[string]int64{
		"2024-01-01--1/rlog":          10,
		"2024-01-01--1/fcamera.hevc":  10,
		"2024-01-01--2/qlog":          10,
		"crash/2024-01-01--3/unknown": 10,
	})

	for range 10 {
		step := h.loop.Step(context.Background())
		if !step.Uploaded {
			break
		}
	}
	want := []string{
		"test-device/crash/2024-01-01--3/unknown",
		"test-device/2024-01-01--2/qlog",
		"test-device/2024-01-01--1/rlog",
		"test-device/2024-01-01--1/fcamera.hevc",
	}
	if got := h.sentKeys(); !slices.Equal(got, want) {
		t.Fatalf("unexpected upload order:\n got %v\nwant %v", got, want)
	}
	stats := h.loop.Stats()
	if stats.UploadedFiles != 4 || stats.State != daemon.StateIdle {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.UpdatedAt.Equal(h.now) {
		t.Fatalf("UpdatedAt = %v, want loop clock %v", stats.UpdatedAt, h.now)
	}
}

func TestStepNothingToUploadSleeps(t *testing.T) {
	h := newHarness(t, true, nil)
	step := h.loop.Step(context.Background())
	if step.Uploaded || step.State != daemon.StateIdle || step.Sleep != 5*time.Second || !step.Wakeable {
		t.Fatalf("expected idle sleep, got %+v", step)
	}
	if h.scanner.scans != 1 {
		t.Fatalf("expected one scan, got %d", h.scanner.scans)
	}
}

func TestStepBackoffGrowsAndResets(t *testing.T) {
	h := newHarness(t, true, nil)
	testsupport.SessionTree(t, h.root, map[string]int64{"s1/qlog": 10})
	h.transport.Queue(
		testsupport.Response{Code: 500},
		testsupport.Response{Code: 503},
		testsupport.Response{Code: 500},
	)

	wantSleeps := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, want := range wantSleeps {
		step := h.loop.Step(context.Background())
		if step.State != daemon.StateBackoff || step.Sleep != want || step.Wakeable {
			t.Fatalf("failure %d: expected %v backoff, got %+v", i+1, want, step)
		}
		if h.loop.Stats().ConsecutiveFailures != i+1 {
			t.Fatalf("failure %d: unexpected streak %d", i+1, h.loop.Stats().ConsecutiveFailures)
		}
	}
	if h.markers.Marked(filepath.Join(h.root, "s1", "qlog")) {
		t.Fatal("retryable failures must not mark the file")
	}

	step := h.loop.Step(context.Background())
	if step.Outcome.Kind != session.OutcomeSuccess || step.Sleep != 0 {
		t.Fatalf("expected success without sleep, got %+v", step)
	}
	stats := h.loop.Stats()
	if stats.ConsecutiveFailures != 0 || stats.Backoff != 100*time.Millisecond {
		t.Fatalf("expected streak and backoff reset, got %+v", stats)
	}
	if snap := h.sink.last(); snap.BackoffSeconds != 0.1 || snap.ConsecutiveFailures != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestStepFailureWithoutSleepKeepsBackoff(t *testing.T) {
	h := newHarness(t, false, nil)
	testsupport.SessionTree(t, h.root, map[string]int64{"s1/qlog": 10})
	h.transport.Queue(testsupport.Response{Code: 500}, testsupport.Response{Code: 500})

	for range 2 {
		step := h.loop.Step(context.Background())
		if step.Sleep != 0 || step.State != daemon.StateIdle {
			t.Fatalf("expected immediate retry, got %+v", step)
		}
	}
	if stats := h.loop.Stats(); stats.Backoff != 100*time.Millisecond || stats.ConsecutiveFailures != 2 {
		t.Fatalf("expected base backoff with a streak of 2, got %+v", stats)
	}
}

func TestStepForbiddenIsUploadedOnce(t *testing.T) {
	h := newHarness(t, false, nil)
	testsupport.SessionTree(t, h.root, map[string]int64{"s1/qlog": 10})
	h.transport.RespondFor("qlog", testsupport.Response{Code: 403})

	first := h.loop.Step(context.Background())
	if first.Outcome.Kind != session.OutcomePermanent {
		t.Fatalf("expected permanent outcome, got %+v", first.Outcome)
	}
	second := h.loop.Step(context.Background())
	if second.Uploaded {
		t.Fatalf("refused file was selected again: %+v", second)
	}
	if calls := h.transport.Calls(); len(calls) != 1 {
		t.Fatalf("expected a single transfer, got %d", len(calls))
	}
	if stats := h.loop.Stats(); stats.ConsecutiveFailures != 0 {
		t.Fatalf("terminal refusal must not count as a failure, got %d", stats.ConsecutiveFailures)
	}
}

func TestStepMeteredSkipsFullFidelity(t *testing.T) {
	h := newHarness(t, false, func(cfg *config.Config) {
		cfg.Uploader.FullFidelityOnMetered = false
	})
	testsupport.SessionTree(t, h.root, map[string]int64{
		"s1/rlog": 10,
		"s1/qlog": 10,
	})
	h.provider.Value = netgate.State{Network: netgate.NetworkCellular, Metered: true}

	h.loop.Step(context.Background())
	if step := h.loop.Step(context.Background()); step.Uploaded {
		t.Fatalf("expected rlog to wait for an unmetered link, got %+v", step)
	}
	if got := h.sentKeys(); !slices.Equal(got, []string{"test-device/s1/qlog"}) {
		t.Fatalf("unexpected uploads %v", got)
	}

	h.provider.Value = netgate.State{Network: netgate.NetworkWifi}
	if step := h.loop.Step(context.Background()); !step.Uploaded || step.File.Name != "rlog" {
		t.Fatalf("expected rlog on wifi, got %+v", step)
	}
}

func TestStepReportsImmediateQueue(t *testing.T) {
	h := newHarness(t, false, nil)
	h.provider.Value = netgate.State{Network: netgate.NetworkCellular}
	testsupport.SessionTree(t, h.root, map[string]int64{
		"s1/qlog":       2_500_000,
		"s1/qcamera.ts": 1_000_000,
	})
	h.transport.Queue(testsupport.Response{Code: 500})

	h.loop.Step(context.Background())
	snap := h.sink.last()
	if snap.ImmediateQueueCount != 2 || snap.ImmediateQueueSize != 3 {
		t.Fatalf("expected 2 immediate files totalling 3 MB, got %+v", snap)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sleeps []time.Duration
	sleeper := func(_ context.Context, d time.Duration, _ <-chan struct{}) bool {
		sleeps = append(sleeps, d)
		if len(sleeps) == 3 {
			cancel()
			return false
		}
		return true
	}
	gate, err := netgate.NewGate(h.cfg.Uploader)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	loop := daemon.NewLoop(daemon.LoopDeps{
		Provider:   h.provider,
		Gate:       gate,
		Scanner:    h.scanner,
		Uploader:   uploader.New(h.transport, h.markers, "dev", nil),
		Publisher:  status.NewPublisher(h.sink, "dev", logging.NewNop()),
		AllowSleep: true,
	}, daemon.WithSleeper(sleeper), daemon.WithLoopLogger(logging.NewNop()))

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sleeps) != 3 {
		t.Fatalf("expected 3 sleeps, got %v", sleeps)
	}
	if snap := h.sink.last(); snap.State != daemon.StateStopped {
		t.Fatalf("expected final stopped snapshot, got %q", snap.State)
	}
}

func TestSleepContext(t *testing.T) {
	wake := make(chan struct{}, 1)
	wake <- struct{}{}
	start := time.Now()
	if !daemon.SleepContext(context.Background(), time.Hour, wake) {
		t.Fatal("expected wake to continue the loop")
	}
	if time.Since(start) > time.Second {
		t.Fatal("wake did not cut the sleep short")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if daemon.SleepContext(ctx, time.Hour, nil) {
		t.Fatal("expected cancelled context to stop the loop")
	}

	if !daemon.SleepContext(context.Background(), time.Millisecond, nil) {
		t.Fatal("expected timer expiry to continue the loop")
	}
}
