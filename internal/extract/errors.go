package extract

import (
	"errors"
	"fmt"
)

// ExhaustedError is returned after every attempt failed. Unwrap yields the
// cause of the final attempt.
type ExhaustedError struct {
	Domain   string
	Attempts int
	Last     error
}

func (e ExhaustedError) Error() string {
	return fmt.Sprintf("extract %s: %d attempts failed: %v", e.Domain, e.Attempts, e.Last)
}

func (e ExhaustedError) Unwrap() error { return e.Last }

// TargetChangedError means the tab navigated away from the domain while the
// extraction was running.
type TargetChangedError struct {
	Domain  string
	Current string
}

func (e TargetChangedError) Error() string {
	if e.Current == "" {
		return "tab left " + e.Domain
	}
	return "tab moved from " + e.Domain + " to " + e.Current
}

// CancelledError means the originating tab was closed. Callers must not
// report it to observers.
type CancelledError struct{ Domain string }

func (e CancelledError) Error() string { return "extraction for " + e.Domain + " cancelled" }

// watchdogError is the last cause of an extraction the watchdog stopped.
type watchdogError struct{ domain string }

func (e watchdogError) Error() string { return "extraction for " + e.domain + " exceeded its budget" }

// Timeout reports true so callers classify it with attempt timeouts.
func (watchdogError) Timeout() bool { return true }

// IsExhausted reports whether err is an ExhaustedError.
func IsExhausted(err error) bool {
	var e ExhaustedError
	return errors.As(err, &e)
}

// IsTargetChanged reports whether err is a TargetChangedError.
func IsTargetChanged(err error) bool {
	var e TargetChangedError
	return errors.As(err, &e)
}

// IsCancelled reports whether err is a CancelledError.
func IsCancelled(err error) bool {
	var e CancelledError
	return errors.As(err, &e)
}
