package middleware

import (
	"context"

	"github.com/Dhole/client-urpc-test/protocol"
)

// CallInfo describes the call passing through the chain. Reply values stay
// inside the handler; middleware only sees the outcome.
type CallInfo struct {
	Device  string      // Registry name of the device
	Addr    string      // Address the call was routed to
	Request string      // Request kind name
	ID      protocol.ID // Request kind id
}

type HandlerFunc func(ctx context.Context, call *CallInfo) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
