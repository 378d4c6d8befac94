package manager

import "time"

// State represents the lifecycle state of a session instance.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateDraining State = "draining"
	StateError    State = "error"
)

// Instance is a live model session bound to one domain.
type Instance struct {
	Domain       string
	SystemPrompt string
	State        State
	Created      time.Time
	LastUsed     time.Time

	session Session
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight prompt
	queueCh chan struct{} // buffered: queue slots
}

// Session returns the model session backing the instance.
func (i *Instance) Session() Session { return i.session }
