package httpapi

import (
	"context"
)

// serverBaseCtx is the daemon lifetime context. Generation streams watch it
// so an in-flight NDJSON response ends when the daemon shuts down, not just
// when the client disconnects. Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext installs the daemon lifetime context. cmd/llamad passes its
// signal-bound context here before serving.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts ties a request context to the daemon lifetime: the result is
// canceled when either is done. The cancel func must be called when the
// handler returns to release the watcher goroutine.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}
