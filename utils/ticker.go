package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/fimnav/logging"
)

// SlowLogger starts a goroutine that warns after threshold, and every threshold after that,
// until the returned function is called or ctx is done.
func SlowLogger(
	ctx context.Context,
	clk clock.Clock,
	threshold time.Duration,
	msg, fieldName string,
	fieldVal interface{},
	logger logging.Logger,
) func() {
	slowTicker := clk.Ticker(threshold)
	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := clk.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-slowTicker.C:
				elapsed := clk.Since(startTime).Round(time.Millisecond).String()
				logger.CWarnw(ctx, msg, fieldName, fieldVal, "time_elapsed", elapsed)
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() {
		slowTicker.Stop()
		cancel()
		<-done
	}
}
