package middleware

import (
	"context"
	"time"
)

// TimeOutMiddleware bounds a call with a context deadline. The call runs on
// the caller's goroutine: the deadline is enforced by the stream it is
// applied to (see transport.Do), since a blocked read cannot be abandoned
// without desynchronizing the link.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *CallInfo) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, call)
		}
	}
}
