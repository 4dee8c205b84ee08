package eventloop

import (
	"context"
	"fmt"
	"time"

	"github.com/cryguy/jsctx/internal/core"
)

// Result summarises one Await.
type Result struct {
	State      State
	Iterations int // timers fired
}

// Await drives the loop until settled reports true. Each round pumps the
// microtask queue, checks for settlement, then waits for the earliest timer
// and fires it. It ends in Failed when nothing is left that could settle the
// call, and in TimedOut when ctx is done or the iteration bound is hit.
//
// Must be called on the runtime's goroutine (JS engines are single-threaded).
func (el *EventLoop) Await(ctx context.Context, rt core.JSRuntime, settled func() bool) (Result, error) {
	res := Result{State: AwaitingSettlement}
	for {
		if err := rt.RunMicrotasks(); err != nil {
			res.State = Failed
			return res, fmt.Errorf("running microtasks: %w", err)
		}
		if settled() {
			res.State = Settled
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.State = TimedOut
			return res, &core.TimeoutError{Stage: "draining", Iterations: res.Iterations, Cause: err}
		}

		due, ok := el.peek()
		if !ok {
			res.State = Failed
			return res, &core.RuntimeError{Message: core.ErrNoScheduledWork.Error(), Cause: core.ErrNoScheduledWork}
		}
		if el.maxIter > 0 && res.Iterations >= el.maxIter {
			res.State = TimedOut
			return res, &core.TimeoutError{Stage: "draining", Iterations: res.Iterations}
		}
		if err := el.wait(ctx, due); err != nil {
			res.State = TimedOut
			return res, &core.TimeoutError{Stage: "draining", Iterations: res.Iterations, Cause: err}
		}

		id, ok := el.popDue(el.clock.Now())
		if !ok {
			continue
		}
		res.Iterations++
		if err := el.fire(rt, id); err != nil {
			res.State = Failed
			return res, err
		}
	}
}

// fire runs a timer callback through the script-side callback table. The
// callback's own exceptions are caught in script and reported to
// console.error; an error here means the engine itself gave up.
func (el *EventLoop) fire(rt core.JSRuntime, id int) error {
	if err := rt.Eval(fmt.Sprintf("__jsctx.fireTimer(%d)", id)); err != nil {
		return fmt.Errorf("firing timer %d: %w", id, err)
	}
	return nil
}

// wait blocks until due. Under virtual time it advances the mock clock
// instead.
func (el *EventLoop) wait(ctx context.Context, due time.Time) error {
	if el.mock != nil {
		if due.After(el.mock.Now()) {
			el.mock.Set(due)
		}
		return ctx.Err()
	}
	d := due.Sub(el.clock.Now())
	if d <= 0 {
		return ctx.Err()
	}
	t := el.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
