package middleware

import (
	"context"
	"log"
	"time"
)

func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *CallInfo) error {
			start := time.Now()
			err := next(ctx, call)
			duration := time.Since(start)
			log.Printf("Device: %s, Addr: %s, Request: %s(%d), Duration: %s", call.Device, call.Addr, call.Request, call.ID, duration)
			if err != nil {
				log.Printf("Error: %v", err)
			}
			return err
		}
	}
}
