package jsctx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pool spreads calls over a fixed number of Contexts compiled from the same
// source, so that up to size calls run in parallel. Contexts share nothing:
// globals set by one call are only visible to later calls that land on the
// same Context.
type Pool struct {
	source string
	opts   []Option
	log    *zap.Logger

	idle   chan *Context
	done   chan struct{}
	closed atomic.Bool

	mu       sync.Mutex // guards the fields below
	members  map[*Context]struct{}
	replaced int
}

// NewPool compiles source size times. Invalid source fails the same way
// Compile does.
func NewPool(source string, size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("jsctx: pool size must be positive, got %d", size)
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		source:  source,
		opts:    opts,
		log:     cfg.Logger.With(zap.String("pool", uuid.NewString())),
		idle:    make(chan *Context, size),
		done:    make(chan struct{}),
		members: make(map[*Context]struct{}, size),
	}
	for i := 0; i < size; i++ {
		c, err := Compile(source, opts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating pool context %d: %w", i, err)
		}
		p.members[c] = struct{}{}
		p.idle <- c
	}
	p.log.Debug("pool ready", zap.Int("size", size))
	return p, nil
}

// Call runs Context.Call on the next idle Context.
func (p *Pool) Call(ctx context.Context, name string, args ...any) (any, error) {
	c, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	defer p.put(c)
	return c.Call(ctx, name, args...)
}

// Eval runs Context.Eval on the next idle Context.
func (p *Pool) Eval(ctx context.Context, expr string) (any, error) {
	c, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	defer p.put(c)
	return c.Eval(ctx, expr)
}

// Size returns the number of live Contexts.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members)
}

// Replaced returns how many unusable Contexts were swapped for fresh ones.
func (p *Pool) Replaced() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.replaced
}

// Stats sums the counters of every live Context.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	members := make([]*Context, 0, len(p.members))
	for c := range p.members {
		members = append(members, c)
	}
	p.mu.Unlock()

	var sum Stats
	for _, c := range members {
		s := c.Stats()
		sum.Calls += s.Calls
		sum.Failed += s.Failed
		sum.TimedOut += s.TimedOut
		sum.DrainIterations += s.DrainIterations
		sum.DiscardedTimers += s.DiscardedTimers
		sum.TotalTime += s.TotalTime
		sum.Logs += s.Logs
		sum.DroppedLogs += s.DroppedLogs
	}
	return sum
}

// Close closes every Context. Calls in flight are interrupted; waiting
// callers get ErrClosed.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	close(p.done)

	p.mu.Lock()
	members := p.members
	p.members = make(map[*Context]struct{})
	p.mu.Unlock()

	var errs []error
	for c := range members {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.log.Debug("pool closed")
	return errors.Join(errs...)
}

// get takes an idle Context, blocking until one is returned.
func (p *Pool) get(ctx context.Context) (*Context, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case c := <-p.idle:
		return c, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, &TimeoutError{Stage: "waiting for idle context", Cause: ctx.Err()}
	}
}

// put hands c back. An unusable Context is closed and replaced by a fresh
// compile of the same source. If that compile fails the old one goes back
// unchanged and keeps reporting its failure.
func (p *Pool) put(c *Context) {
	if p.closed.Load() {
		c.Close()
		return
	}
	if err := c.usable(); err != nil {
		p.log.Warn("replacing unusable context", zap.String("context", c.ID()), zap.Error(err))
		if fresh, err := Compile(p.source, p.opts...); err != nil {
			p.log.Error("recompiling pool context", zap.Error(err))
		} else {
			p.mu.Lock()
			if p.closed.Load() {
				p.mu.Unlock()
				fresh.Close()
				c.Close()
				return
			}
			delete(p.members, c)
			p.members[fresh] = struct{}{}
			p.replaced++
			p.mu.Unlock()
			c.Close()
			c = fresh
		}
	}
	select {
	case p.idle <- c:
	default:
		c.Close()
	}
}
