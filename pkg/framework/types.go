package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Event is anything posted to a Loop for processing. Concrete event types
// are declared by the packages that produce them (button presses, link
// chunks, connect/disconnect).
type Event interface{}

// Handler consumes events drained by the loop. Handlers run on the loop
// goroutine only, so they may touch loop-owned state without locking.
type Handler interface {
	HandleEvent(context.Context, Event)
}

// HandleEventFunc is the func form of Handler.
type HandleEventFunc func(context.Context, Event)

// HandleEvent implements Handler.
func (f HandleEventFunc) HandleEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Ticker runs periodic work on the loop goroutine after each drain pass,
// e.g. display refresh or memory housekeeping.
type Ticker interface {
	Tick(context.Context, time.Time)
}

// TickFunc is the func form of Ticker.
type TickFunc func(context.Context, time.Time)

// Tick implements Ticker.
func (f TickFunc) Tick(ctx context.Context, now time.Time) {
	f(ctx, now)
}
