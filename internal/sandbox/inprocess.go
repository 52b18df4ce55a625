package sandbox

import "context"

// InProcess runs the handler on a goroutine of the calling process. On
// timeout the caller moves on but the goroutine cannot be stopped and
// finishes in the background; use it where the handler is known to
// return, such as tests and library callers without a worker binary.
type InProcess struct {
	Handler Handler
}

// Run implements Runner.
func (p InProcess) Run(ctx context.Context, req Request) (Response, error) {
	done := make(chan Response, 1)
	go func() {
		done <- safely(ctx, req, p.Handler)
	}()
	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return Response{Attempt: emptyAttempt(req)}, timeout(ctx, req.Strategy)
	}
}
