package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx ends when the daemon shuts down. Long polls and event
// streams watch it so shutdown does not wait for their timeouts.
var serverBaseCtx = context.Background()

// SetBaseContext installs the shutdown context. nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives from req, keeping its values, and also ends when
// base ends. cancel must be called when the handler returns.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(context.Cause(base)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// requestContext joins r's context with the shutdown context.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return joinContexts(serverBaseCtx, r.Context())
}
