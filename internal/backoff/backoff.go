// Package backoff computes the delay between failed upload attempts.
package backoff

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultBase = 100 * time.Millisecond
	DefaultMax  = 120 * time.Second
)

// Controller tracks the current delay. It is not safe for concurrent use; the
// upload loop owns it.
type Controller struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
	jitter  func(time.Duration) time.Duration
}

// Option customises a Controller.
type Option func(*Controller)

// WithJitter replaces the random jitter source. fn receives the current delay
// and returns the extra wait to add to it.
func WithJitter(fn func(time.Duration) time.Duration) Option {
	return func(c *Controller) {
		if fn != nil {
			c.jitter = fn
		}
	}
}

// New returns a controller starting at base and capped at ceiling. Non-positive
// values fall back to the defaults.
func New(base, ceiling time.Duration, opts ...Option) *Controller {
	if base <= 0 {
		base = DefaultBase
	}
	if ceiling <= 0 {
		ceiling = DefaultMax
	}
	if base > ceiling {
		base = ceiling
	}
	c := &Controller{base: base, max: ceiling, current: base, jitter: uniformJitter}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Failure returns how long to wait after a failed attempt: the current delay
// plus a uniform jitter in [0, delay). The delay then doubles up to the cap.
func (c *Controller) Failure() time.Duration {
	wait := c.current + c.jitter(c.current)
	c.current = min(c.current*2, c.max)
	return wait
}

// Success resets the delay to its base.
func (c *Controller) Success() {
	c.current = c.base
}

// Current returns the delay the next failure will start from.
func (c *Controller) Current() time.Duration {
	return c.current
}

func uniformJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d)
}
