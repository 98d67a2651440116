package daemon

import (
	"context"
	"log/slog"
	"time"

	"courier/internal/backoff"
	"courier/internal/logging"
	"courier/internal/netgate"
	"courier/internal/scheduler"
	"courier/internal/session"
	"courier/internal/status"
)

// Loop states reported in the status snapshot.
const (
	StateStarting  = "starting"
	StateGated     = "gated"
	StateIdle      = "idle"
	StateUploading = "uploading"
	StateBackoff   = "backoff"
	StateStopped   = "stopped"
)

// Scanner lists the files still waiting for upload.
type Scanner interface {
	Scan(ctx context.Context) []session.File
	Counters() (bytes int64, count int)
}

// Uploader performs one upload attempt.
type Uploader interface {
	Upload(ctx context.Context, file session.File) session.Outcome
}

// Sleeper waits for d, returning false if ctx ended first. A receive on wake
// ends the wait early; wake may be nil.
type Sleeper func(ctx context.Context, d time.Duration, wake <-chan struct{}) bool

// Step describes what one iteration did and how long the loop should wait
// before the next one.
type Step struct {
	State    string
	File     session.File
	Outcome  session.Outcome
	Uploaded bool
	Sleep    time.Duration
	// Wakeable sleeps end early on a network change.
	Wakeable bool
}

// Loop is the upload state machine. It is driven from a single goroutine.
type Loop struct {
	provider   netgate.Provider
	gate       *netgate.Gate
	scanner    Scanner
	uploader   Uploader
	backoff    *backoff.Controller
	publisher  *status.Publisher
	stats      *session.Stats
	allowSleep bool

	logger *slog.Logger
	sleep  Sleeper
	wake   <-chan struct{}
	now    func() time.Time
}

// LoopDeps groups the collaborators a Loop sequences.
type LoopDeps struct {
	Provider  netgate.Provider
	Gate      *netgate.Gate
	Scanner   Scanner
	Uploader  Uploader
	Backoff   *backoff.Controller
	Publisher *status.Publisher
	// Stats must be the same value the uploader updates.
	Stats *session.Stats
	// AllowSleep enables the idle and backoff waits.
	AllowSleep bool
}

// LoopOption customises a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the loop's logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithSleeper replaces the wait used between iterations.
func WithSleeper(fn Sleeper) LoopOption {
	return func(l *Loop) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

// WithWake lets sends on ch cut idle and gated sleeps short.
func WithWake(ch <-chan struct{}) LoopOption {
	return func(l *Loop) {
		l.wake = ch
	}
}

// WithLoopClock replaces the time source used for snapshot timestamps.
func WithLoopClock(now func() time.Time) LoopOption {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLoop builds a loop. A nil Backoff or Stats is replaced with a default.
func NewLoop(deps LoopDeps, opts ...LoopOption) *Loop {
	l := &Loop{
		provider:   deps.Provider,
		gate:       deps.Gate,
		scanner:    deps.Scanner,
		uploader:   deps.Uploader,
		backoff:    deps.Backoff,
		publisher:  deps.Publisher,
		stats:      deps.Stats,
		allowSleep: deps.AllowSleep,
		sleep:      SleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.NewComponentLogger(l.logger, "loop")
	if l.backoff == nil {
		l.backoff = backoff.New(backoff.DefaultBase, backoff.DefaultMax)
	}
	if l.stats == nil {
		l.stats = &session.Stats{}
	}
	l.stats.State = StateStarting
	l.stats.Backoff = l.backoff.Current()
	return l
}

// Stats returns a copy of the loop's statistics.
func (l *Loop) Stats() session.Stats {
	return *l.stats
}

// Run repeats Step until ctx is cancelled. Cancellation is observed between
// iterations and during sleeps; an upload in flight always completes.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopped()
	for {
		if ctx.Err() != nil {
			return nil
		}
		step := l.Step(ctx)
		if step.Sleep <= 0 {
			continue
		}
		wake := l.wake
		if !step.Wakeable {
			wake = nil
		}
		if !l.sleep(ctx, step.Sleep, wake) {
			return nil
		}
	}
}

// Step runs one iteration without sleeping.
func (l *Loop) Step(ctx context.Context) Step {
	state, err := l.provider.State(ctx)
	if err != nil {
		logging.WarnWithContext(l.logger, "device state unavailable", "device_state_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check device.state_path or device.state_source"),
			logging.String(logging.FieldImpact, "uploads wait until a network is reported"),
		)
	}
	decision := l.gate.Decide(state)
	l.stats.Network = string(decision.Network)

	if !decision.Proceed {
		l.logger.Debug("no network, waiting",
			logging.String(logging.FieldEventType, "network_gated"),
			logging.Bool("offroad", state.Offroad),
			logging.Duration("sleep", decision.Sleep),
		)
		return l.finish(ctx, Step{State: StateGated, Sleep: decision.Sleep, Wakeable: true})
	}

	files := l.scanner.Scan(ctx)
	l.stats.ImmediateBytes, l.stats.ImmediateCount = l.scanner.Counters()

	file, ok := scheduler.SelectNext(files, decision.AllowFullFidelity)
	if !ok {
		l.logger.Debug("nothing to upload",
			logging.String(logging.FieldEventType, "nothing_to_upload"),
			logging.Int("candidates", len(files)),
			logging.Bool("full_fidelity", decision.AllowFullFidelity),
		)
		return l.finish(ctx, Step{State: StateIdle, Sleep: decision.Sleep, Wakeable: true})
	}

	l.stats.State = StateUploading
	l.publish(ctx)

	uploadCtx := logging.WithFileKey(context.WithoutCancel(ctx), file.Key())
	outcome := l.uploader.Upload(uploadCtx, file)
	step := Step{File: file, Outcome: outcome, Uploaded: true}
	if outcome.Terminal() {
		l.backoff.Success()
		l.stats.ConsecutiveFailures = 0
		l.stats.Backoff = l.backoff.Current()
		step.State = StateIdle
		return l.finish(ctx, step)
	}

	l.stats.ConsecutiveFailures++
	step.State = StateIdle
	if l.allowSleep {
		step.State = StateBackoff
		step.Sleep = l.backoff.Failure()
		logging.WithContext(uploadCtx, l.logger).Info("upload backoff",
			logging.String(logging.FieldEventType, "upload_backoff"),
			logging.Duration("delay", step.Sleep),
			logging.Int("consecutive_failures", l.stats.ConsecutiveFailures),
		)
	}
	l.stats.Backoff = l.backoff.Current()
	return l.finish(ctx, step)
}

func (l *Loop) finish(ctx context.Context, step Step) Step {
	l.stats.State = step.State
	l.publish(ctx)
	return step
}

func (l *Loop) stopped() {
	l.stats.State = StateStopped
	l.publish(context.Background())
}

func (l *Loop) publish(ctx context.Context) {
	l.stats.UpdatedAt = l.now()
	if l.publisher == nil {
		return
	}
	l.publisher.Publish(ctx, l.publisher.Snapshot(*l.stats))
}

// SleepContext waits for d, for ctx to end, or for a receive on wake.
// It reports whether the caller should keep running.
func SleepContext(ctx context.Context, d time.Duration, wake <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-wake:
		return true
	case <-timer.C:
		return true
	}
}
