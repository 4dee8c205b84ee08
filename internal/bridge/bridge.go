// Package bridge carries values from script-invoked host operations back to
// the call that is waiting for them, and keeps the captured console log.
//
// The pending-value slot belongs to exactly one call at a time. Begin hands
// out a fresh call id; operations settle by id, so a continuation left over
// from an earlier call can never write into a later call's slot.
package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cryguy/jsctx/internal/core"
)

// State is the settlement state reported by script.
type State string

const (
	Fulfilled     State = "fulfilled"
	Rejected      State = "rejected"
	Unconvertible State = "unconvertible" // the value could not be encoded
)

// Outcome is what a call's slot holds once settled. Payload is wire JSON for
// Fulfilled, an error description for Rejected, and a path/reason pair for
// Unconvertible.
type Outcome struct {
	State   State
	Payload string
}

var (
	ErrStaleCall      = errors.New("bridge: settlement for a call that is no longer active")
	ErrAlreadySettled = errors.New("bridge: call already settled")
	ErrUnknownState   = errors.New("bridge: unknown settlement state")
)

type slot struct {
	id      uint64
	outcome Outcome
	filled  bool
	taken   bool
}

// Bridge is owned by one Context.
type Bridge struct {
	mu     sync.Mutex
	seq    uint64
	active *slot

	logs       []core.LogEntry
	dropped    int
	maxEntries int
	maxMsgSize int
	onLog      func(core.LogEntry)
	now        func() time.Time
}

// New creates a Bridge with the given log limits. onLog, when non-nil, sees
// every accepted entry.
func New(maxEntries, maxMsgSize int, onLog func(core.LogEntry)) *Bridge {
	return &Bridge{
		maxEntries: maxEntries,
		maxMsgSize: maxMsgSize,
		onLog:      onLog,
		now:        time.Now,
	}
}

// Begin clears the slot and assigns it to a new call.
func (b *Bridge) Begin() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.active = &slot{id: b.seq}
	return b.seq
}

// Settle stores the outcome for call id.
func (b *Bridge) Settle(id uint64, o Outcome) error {
	switch o.State {
	case Fulfilled, Rejected, Unconvertible:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownState, o.State)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == nil || b.active.id != id {
		return ErrStaleCall
	}
	if b.active.filled {
		return ErrAlreadySettled
	}
	b.active.outcome = o
	b.active.filled = true
	return nil
}

// Ready reports whether call id has been settled and not yet taken.
func (b *Bridge) Ready(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil && b.active.id == id && b.active.filled && !b.active.taken
}

// Take returns the outcome of call id. It succeeds at most once per call.
func (b *Bridge) Take(id uint64) (Outcome, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == nil || b.active.id != id || !b.active.filled || b.active.taken {
		return Outcome{}, false
	}
	b.active.taken = true
	o := b.active.outcome
	b.active.outcome = Outcome{}
	return o, true
}

// End releases the slot of call id.
func (b *Bridge) End(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != nil && b.active.id == id {
		b.active = nil
	}
}

// Active returns the id of the call owning the slot, or 0.
func (b *Bridge) Active() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == nil {
		return 0
	}
	return b.active.id
}

// AppendLog records a console line. It never blocks the script: once the
// buffer is full further entries are counted and dropped.
func (b *Bridge) AppendLog(level, message string) {
	b.mu.Lock()
	if b.maxEntries > 0 && len(b.logs) >= b.maxEntries {
		b.dropped++
		b.mu.Unlock()
		return
	}
	if b.maxMsgSize > 0 && len(message) > b.maxMsgSize {
		message = message[:b.maxMsgSize] + "...(truncated)"
	}
	entry := core.LogEntry{Level: level, Message: message, Time: b.now()}
	b.logs = append(b.logs, entry)
	onLog := b.onLog
	b.mu.Unlock()

	if onLog != nil {
		onLog(entry)
	}
}

// Logs returns a copy of the captured entries in insertion order.
func (b *Bridge) Logs() []core.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.LogEntry(nil), b.logs...)
}

// Messages returns the captured messages in insertion order.
func (b *Bridge) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.logs))
	for i, e := range b.logs {
		out[i] = e.Message
	}
	return out
}

// ClearLogs empties the log buffer and the drop counter.
func (b *Bridge) ClearLogs() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = nil
	b.dropped = 0
}

// Dropped returns how many entries were discarded since the last clear.
func (b *Bridge) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// LogCount returns the number of buffered entries.
func (b *Bridge) LogCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.logs)
}
