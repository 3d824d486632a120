package reqmanager

import (
	"context"
	"fmt"
	"time"

	"netmsg/internal/logging"
	"netmsg/wire"
)

// Middleware wraps a HandlerFunc to add cross-cutting behavior around it —
// the onion-model decorator pattern.
//
// Grounded on mini-rpc/middleware/middleware.go's Middleware/Chain, narrowed
// to structured logging and a per-handler timeout. Rate limiting and retry
// middleware are not carried — see SPEC_FULL.md's DOMAIN STACK table for
// why.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first argument is the outermost layer:
// Chain(A, B)(handler) runs A.before -> B.before -> handler -> B.after ->
// A.after.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// LoggingMiddleware logs a handler's duration and any error it returned, in
// the same one-line-per-call style as mini-rpc/middleware/logging_middleware.go.
func LoggingMiddleware(log logging.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, packet wire.Packet) (wire.Packet, error) {
			start := time.Now()
			resp, err := next(ctx, packet)
			if err != nil {
				log.Debugw("request handled", "duration", time.Since(start), "error", err)
			} else {
				log.Debugw("request handled", "duration", time.Since(start))
			}
			return resp, err
		}
	}
}

// TimeOutMiddleware bounds how long a handler is waited on. When the
// timeout fires, the context passed to the handler is cancelled and the
// caller stops waiting; the handler goroutine is not stopped and runs until
// it returns, as in mini-rpc/middleware/timeout_middleware.go.
//
// This is latency bounding, not flow control: it never rejects a request
// before it runs, it only stops waiting for one that's taking too long.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, packet wire.Packet) (wire.Packet, error) {
			if timeout <= 0 {
				return next(ctx, packet)
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				packet wire.Packet
				err    error
			}
			done := make(chan result, 1)
			go func() {
				p, err := next(ctx, packet)
				done <- result{p, err}
			}()

			select {
			case r := <-done:
				return r.packet, r.err
			case <-ctx.Done():
				return nil, fmt.Errorf("reqmanager: request timed out")
			}
		}
	}
}
