package inject

import (
	"context"
	"sync"

	"go.viam.com/fimnav/control"
)

// Dispatcher is an injected control.Dispatcher. Without a DispatchFunc it records every plan
// it receives.
type Dispatcher struct {
	control.Dispatcher
	DispatchFunc func(ctx context.Context, plan control.TickPlan) error

	mu         sync.Mutex
	dispatched []control.TickPlan
}

// Dispatch calls the injected DispatchFunc or records the plan.
func (d *Dispatcher) Dispatch(ctx context.Context, plan control.TickPlan) error {
	if d.DispatchFunc != nil {
		return d.DispatchFunc(ctx, plan)
	}
	if d.Dispatcher != nil {
		return d.Dispatcher.Dispatch(ctx, plan)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, plan)
	return nil
}

// Dispatched returns the plans recorded so far.
func (d *Dispatcher) Dispatched() []control.TickPlan {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]control.TickPlan(nil), d.dispatched...)
}
