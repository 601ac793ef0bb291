package logging

import "context"

type tickKeyType int

const tickKeyID = tickKeyType(iota)

// WithTick tags a context with the control tick number so context-aware log calls
// made while serving that tick carry it.
func WithTick(ctx context.Context, tick uint64) context.Context {
	return context.WithValue(ctx, tickKeyID, tick)
}

// TickFromContext returns the tick a context was tagged with, if any.
func TickFromContext(ctx context.Context) (uint64, bool) {
	tick, ok := ctx.Value(tickKeyID).(uint64)
	return tick, ok
}

func withDebugKey(ctx context.Context, keysAndValues []interface{}) []interface{} {
	if ctx == nil {
		return keysAndValues
	}
	tick, ok := TickFromContext(ctx)
	if !ok {
		return keysAndValues
	}
	return append([]interface{}{"tick", tick}, keysAndValues...)
}
