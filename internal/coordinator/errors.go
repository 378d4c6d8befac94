package coordinator

import (
	"context"
	"errors"
	"fmt"

	"sitecnd/internal/agent"
	"sitecnd/internal/extract"
	"sitecnd/internal/manager"
	"sitecnd/internal/store"
	"sitecnd/pkg/types"
)

// Failure categories reported to observers.
const (
	CodeTargetUnresolved = "target_unresolved"
	CodeModelUnavailable = "model_unavailable"
	CodeModelBusy        = "model_busy"
	CodeTimeout          = "timeout"
	CodePageBlocked      = "page_blocked"
	CodeAgentUnavailable = "agent_unavailable"
	CodeTargetChanged    = "target_changed"
	CodeEmptyOutput      = "empty_output"
	CodeStorage          = "storage"
	CodeInternal         = "internal"
)

// BadRequestError rejects a malformed inbound message.
type BadRequestError struct{ Reason string }

func (e BadRequestError) Error() string { return "bad request: " + e.Reason }

// UnknownKindError rejects an inbound kind the router does not handle.
type UnknownKindError struct{ Kind types.Kind }

func (e UnknownKindError) Error() string { return fmt.Sprintf("unknown message kind %q", e.Kind) }

// IsBadRequest reports whether err was caused by the caller's message.
func IsBadRequest(err error) bool {
	var b BadRequestError
	var u UnknownKindError
	return errors.As(err, &b) || errors.As(err, &u)
}

type targetUnresolvedError struct{}

func (targetUnresolvedError) Error() string { return "no target site could be determined" }

type emptyOutputError struct{ domain string }

func (e emptyOutputError) Error() string { return "model returned no stylesheet for " + e.domain }

type timeouter interface{ Timeout() bool }

// Categorize maps err to a category and a message meant for people.
func Categorize(err error) types.ErrorInfo {
	var (
		agentErr agent.AgentError
		to       timeouter
	)
	switch {
	case err == nil:
		return types.ErrorInfo{}
	case errors.As(err, &targetUnresolvedError{}):
		return types.ErrorInfo{Code: CodeTargetUnresolved, Message: "Open a regular web page first; no site is selected."}
	case extract.IsTargetChanged(err):
		return types.ErrorInfo{Code: CodeTargetChanged, Message: "The tab navigated to another site before the page could be read."}
	case store.IsTransient(err):
		return types.ErrorInfo{Code: CodeStorage, Message: "Saved site data could not be read or written."}
	case manager.IsTooBusy(err):
		return types.ErrorInfo{Code: CodeModelBusy, Message: "The model is busy with other requests for this site. Try again shortly."}
	case manager.IsModelUnavailable(err):
		return types.ErrorInfo{Code: CodeModelUnavailable, Message: "The on-device model is not available."}
	case agent.IsInjection(err):
		return types.ErrorInfo{Code: CodePageBlocked, Message: "This page does not allow style analysis."}
	case errors.As(err, &agentErr):
		return types.ErrorInfo{Code: CodePageBlocked, Message: "The page refused style analysis: " + agentErr.Reason}
	case agent.IsTimeout(err), errors.Is(err, context.DeadlineExceeded), errors.As(err, &to) && to.Timeout():
		return types.ErrorInfo{Code: CodeTimeout, Message: "The page did not respond in time."}
	case agent.IsAbsent(err), errors.Is(err, agent.ErrNoAgent):
		return types.ErrorInfo{Code: CodeAgentUnavailable, Message: "The page helper is not connected. Reload the page and try again."}
	case errors.As(err, &emptyOutputError{}):
		return types.ErrorInfo{Code: CodeEmptyOutput, Message: "The model did not produce a stylesheet."}
	}
	return internalError()
}

func internalError() types.ErrorInfo {
	return types.ErrorInfo{Code: CodeInternal, Message: "Something went wrong. Please try again."}
}
