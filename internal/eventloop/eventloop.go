package eventloop

import (
	"container/heap"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// minInterval keeps a zero-delay setInterval from pinning the drain loop at
// a single instant.
const minInterval = time.Millisecond

// timerEntry represents a pending setTimeout or setInterval callback.
// The actual callback is stored in __jsctx.timers[id] on the JS side. Go
// only tracks scheduling metadata.
type timerEntry struct {
	due      time.Time
	seq      uint64
	interval time.Duration // 0 for setTimeout, >0 for setInterval
	id       int
	index    int
}

// timerQueue is a min-heap ordered by (due, seq), so timers due at the same
// instant fire in registration order.
type timerQueue []*timerEntry

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*timerEntry)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// EventLoop owns the timer queue and the clock of one Context.
type EventLoop struct {
	mu      sync.Mutex
	clock   clock.Clock
	mock    *clock.Mock // non-nil in virtual time
	origin  time.Time
	queue   timerQueue
	byID    map[int]*timerEntry
	nextID  int
	seq     uint64
	maxIter int
}

// Option configures an EventLoop.
type Option func(*EventLoop)

// WithVirtualTime replaces the wall clock with a mock clock that only moves
// when the loop advances it to the next due timer.
func WithVirtualTime() Option {
	return func(el *EventLoop) {
		m := clock.NewMock()
		m.Set(time.Now())
		el.mock = m
		el.clock = m
	}
}

// WithClock uses c as the time source.
func WithClock(c clock.Clock) Option {
	return func(el *EventLoop) {
		el.clock = c
		el.mock, _ = c.(*clock.Mock)
	}
}

// WithMaxIterations bounds the number of timer firings in one Await.
func WithMaxIterations(n int) Option {
	return func(el *EventLoop) { el.maxIter = n }
}

// New creates a new EventLoop on the real clock.
func New(opts ...Option) *EventLoop {
	el := &EventLoop{
		clock: clock.New(),
		byID:  make(map[int]*timerEntry),
	}
	for _, opt := range opts {
		opt(el)
	}
	el.origin = el.clock.Now()
	return el
}

// Virtual reports whether the loop runs on a mock clock.
func (el *EventLoop) Virtual() bool { return el.mock != nil }

// Now returns the loop's current time.
func (el *EventLoop) Now() time.Time { return el.clock.Now() }

// Monotonic returns milliseconds elapsed since the loop was created.
func (el *EventLoop) Monotonic() float64 {
	return float64(el.clock.Now().Sub(el.origin)) / float64(time.Millisecond)
}

// Schedule registers a timer and returns its id. Negative delays count as
// zero. Repeating timers fire no more often than once per millisecond.
func (el *EventLoop) Schedule(delay time.Duration, repeat bool) int {
	if delay < 0 {
		delay = 0
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	el.seq++
	t := &timerEntry{
		due: el.clock.Now().Add(delay),
		seq: el.seq,
		id:  el.nextID,
	}
	if repeat {
		t.interval = max(delay, minInterval)
	}
	heap.Push(&el.queue, t)
	el.byID[t.id] = t
	return t.id
}

// Cancel removes a timer. Unknown or already fired ids are ignored.
func (el *EventLoop) Cancel(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	t, ok := el.byID[id]
	if !ok {
		return
	}
	delete(el.byID, id)
	if t.index >= 0 {
		heap.Remove(&el.queue, t.index)
	}
}

// Pending returns the number of scheduled timers.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.queue)
}

// Reset discards every pending timer and returns how many were dropped.
// Ids keep increasing so a stale clearTimeout cannot hit a new timer.
func (el *EventLoop) Reset() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	n := len(el.queue)
	el.queue = nil
	el.byID = make(map[int]*timerEntry)
	return n
}

// peek returns the due time of the next timer.
func (el *EventLoop) peek() (time.Time, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if len(el.queue) == 0 {
		return time.Time{}, false
	}
	return el.queue[0].due, true
}

// popDue removes the earliest timer if it is due and reschedules intervals.
func (el *EventLoop) popDue(now time.Time) (int, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if len(el.queue) == 0 || el.queue[0].due.After(now) {
		return 0, false
	}
	t := heap.Pop(&el.queue).(*timerEntry)
	if t.interval > 0 {
		el.seq++
		t.seq = el.seq
		t.due = now.Add(t.interval)
		heap.Push(&el.queue, t)
	} else {
		delete(el.byID, t.id)
	}
	return t.id, true
}
