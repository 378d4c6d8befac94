package agent

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError means no response arrived within the attempt's timeout.
type TimeoutError struct {
	Domain string
	After  time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("no snapshot from %s within %s", e.Domain, e.After)
}

// AgentError carries a failure reported by the content agent itself.
type AgentError struct {
	Domain string
	Reason string
}

func (e AgentError) Error() string { return "agent error for " + e.Domain + ": " + e.Reason }

// InjectionError means the agent was absent and could not be injected.
// The page may forbid scripts.
type InjectionError struct {
	TabID int
	Err   error
}

func (e InjectionError) Error() string {
	return fmt.Sprintf("inject agent into tab %d: %v", e.TabID, e.Err)
}

func (e InjectionError) Unwrap() error { return e.Err }

// AbsentError means the command could not be dispatched after the probe.
type AbsentError struct {
	TabID int
	Err   error
}

func (e AbsentError) Error() string {
	return fmt.Sprintf("dispatch to tab %d: %v", e.TabID, e.Err)
}

func (e AbsentError) Unwrap() error { return e.Err }

// ErrNoAgent is returned by Bridge.Send when no agent polls for the tab.
var ErrNoAgent = errors.New("no agent connected")

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var e TimeoutError
	return errors.As(err, &e)
}

// IsAgentError reports whether err is an AgentError.
func IsAgentError(err error) bool {
	var e AgentError
	return errors.As(err, &e)
}

// IsInjection reports whether err is an InjectionError.
func IsInjection(err error) bool {
	var e InjectionError
	return errors.As(err, &e)
}

// IsAbsent reports whether err is an AbsentError.
func IsAbsent(err error) bool {
	var e AbsentError
	return errors.As(err, &e)
}
