package framework

import (
	"context"
	"log"
	"sync"
	"time"
)

// Loop serializes all device state mutation onto one goroutine. Transport
// callbacks and input sources run in their own contexts and only call Post;
// the loop drains the queue and feeds events to handlers in arrival order,
// so handlers own the frame buffers, store and session exclusively without
// further locking.
type Loop struct {
	// Interval bounds how long tickers wait when no events arrive.
	Interval time.Duration

	handlers []Handler
	tickers  []Ticker
	runners  []Runnable

	lock   sync.Mutex
	queue  []Event
	wakeCh chan struct{}
}

// LoopAdder provides specific logic to add components to a loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: 100 * time.Millisecond,
		wakeCh:   make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddHandler registers event handlers, invoked in registration order.
func (l *Loop) AddHandler(handlers ...Handler) *Loop {
	l.handlers = append(l.handlers, handlers...)
	for _, h := range handlers {
		if runner, ok := h.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddTicker registers periodic work run after each drain pass.
func (l *Loop) AddTicker(tickers ...Ticker) *Loop {
	l.tickers = append(l.tickers, tickers...)
	return l
}

// AddRunnable adds Runnable implementations spawned alongside the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Post enqueues an event and wakes the loop. Safe from any goroutine; this
// is the only loop entry point transports may call.
func (l *Loop) Post(ev Event) {
	l.lock.Lock()
	l.queue = append(l.queue, ev)
	l.lock.Unlock()
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// Pending reports the number of queued events.
func (l *Loop) Pending() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.queue)
}

// Run implements Runnable. It spawns the registered runners and then drains
// events until the context is canceled. A runner failure is fatal to the
// loop: the remaining runners are stopped and the first error is returned,
// so a device that lost its transport restarts instead of continuing
// silently without it.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	pending := len(runner.Runners)
	stop := func() {
		cancel()
		for ; pending > 0; pending-- {
			<-runner.errCh
		}
	}

	interval := l.Interval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()
		case err := <-runner.errCh:
			pending--
			if err != nil && err != context.Canceled {
				stop()
				return err
			}
		case <-tick.C:
			l.runIteration(ctx, time.Now())
		case <-l.wakeCh:
			l.runIteration(ctx, time.Now())
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop: CtrlC
// and SIGTERM stop it cleanly, anything else exits the process with a
// diagnostic.
func (l *Loop) RunOrFail() {
	runner := NewRunner().HandleSignals()
	runner.Go(NamedRun("loop", l))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

// RunPending drains queued events once without running tickers. Intended
// for tests and the simulator, where the caller drives iterations itself.
func (l *Loop) RunPending(ctx context.Context) {
	l.drain(ctx)
}

func (l *Loop) runIteration(ctx context.Context, now time.Time) {
	l.drain(ctx)
	for _, t := range l.tickers {
		t.Tick(ctx, now)
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		l.lock.Lock()
		batch := l.queue
		l.queue = nil
		l.lock.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			for _, h := range l.handlers {
				h.HandleEvent(ctx, ev)
			}
		}
	}
}
