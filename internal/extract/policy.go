package extract

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the retry loop of one extraction. Attempts are numbered
// from 1.
type Policy struct {
	MaxAttempts    int
	BackoffUnit    time.Duration
	TimeoutBase    time.Duration
	TimeoutStep    time.Duration
	TimeoutCeiling time.Duration
	// WatchdogSlack is added to the worst-case budget before the watchdog
	// cancels an extraction.
	WatchdogSlack time.Duration
}

// Default retry policy values.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoffUnit    = time.Second
	DefaultTimeoutBase    = 5 * time.Second
	DefaultTimeoutStep    = time.Second
	DefaultTimeoutCeiling = 8 * time.Second
	DefaultWatchdogSlack  = 5 * time.Second
)

// DefaultPolicy returns three attempts with 2s/4s backoff and 6s, 7s, 8s
// timeouts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		BackoffUnit:    DefaultBackoffUnit,
		TimeoutBase:    DefaultTimeoutBase,
		TimeoutStep:    DefaultTimeoutStep,
		TimeoutCeiling: DefaultTimeoutCeiling,
		WatchdogSlack:  DefaultWatchdogSlack,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BackoffUnit <= 0 {
		p.BackoffUnit = d.BackoffUnit
	}
	if p.TimeoutBase <= 0 {
		p.TimeoutBase = d.TimeoutBase
	}
	if p.TimeoutStep < 0 {
		p.TimeoutStep = 0
	}
	if p.TimeoutCeiling <= 0 {
		p.TimeoutCeiling = d.TimeoutCeiling
	}
	if p.WatchdogSlack <= 0 {
		p.WatchdogSlack = d.WatchdogSlack
	}
	return p
}

const maxBackoffShift = 16

// Backoff is the pause after a failed attempt: 2^attempt backoff units.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return p.BackoffUnit
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	eb := p.schedule()
	d := eb.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = eb.NextBackOff()
	}
	return d
}

// schedule yields the pauses after attempts 1, 2, ... without jitter.
func (p Policy) schedule() *backoff.ExponentialBackOff {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     2 * p.BackoffUnit,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.BackoffUnit << maxBackoffShift,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	eb.Reset()
	return eb
}

// Timeout is the response deadline of an attempt, growing by TimeoutStep
// per attempt up to TimeoutCeiling.
func (p Policy) Timeout(attempt int) time.Duration {
	t := p.TimeoutBase + time.Duration(attempt)*p.TimeoutStep
	if t > p.TimeoutCeiling {
		return p.TimeoutCeiling
	}
	return t
}

// Budget is the worst-case duration of a full retry loop plus slack.
func (p Policy) Budget() time.Duration {
	var total time.Duration
	for a := 1; a <= p.MaxAttempts; a++ {
		total += p.Timeout(a)
		if a < p.MaxAttempts {
			total += p.Backoff(a)
		}
	}
	return total + p.WatchdogSlack
}
