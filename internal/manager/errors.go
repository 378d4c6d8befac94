package manager

// tooBusyError signals queue timeout/overflow on a session.
type tooBusyError struct{ domain string }

func (e tooBusyError) Error() string { return "session busy: " + e.domain }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// modelUnavailableError means the model cannot serve prompts in its current
// availability state.
type modelUnavailableError struct{ state string }

func (e modelUnavailableError) Error() string { return "model unavailable: " + e.state }

// ErrModelUnavailable returns an error for a non-ready availability state.
func ErrModelUnavailable(state string) error { return modelUnavailableError{state: state} }

// IsModelUnavailable reports whether err indicates an unusable model.
func IsModelUnavailable(err error) bool {
	switch err.(type) {
	case modelUnavailableError, dependencyUnavailableError:
		return true
	}
	return false
}

// sessionClosedError is returned when the instance was destroyed while a
// caller waited for it.
type sessionClosedError struct{ domain string }

func (e sessionClosedError) Error() string { return "session closed: " + e.domain }

// IsSessionClosed reports whether err indicates a destroyed session.
func IsSessionClosed(err error) bool {
	_, ok := err.(sessionClosedError)
	return ok
}

// dependencyUnavailableError signals a missing runtime dependency
// (e.g., llama.cpp not built in).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}
