package jsctx

import "time"

// Stats counts what a Context has done since it was created or last reset.
type Stats struct {
	Calls           int           // calls begun, whatever their outcome
	Failed          int           // calls that ended in an error other than a timeout
	TimedOut        int           // calls that ran out of time or drain iterations
	DrainIterations int           // timers fired while waiting for deferred results
	DiscardedTimers int           // timers dropped when their call ended
	TotalTime       time.Duration // wall time spent in calls
	Logs            int           // console lines currently buffered
	DroppedLogs     int           // console lines dropped since the last ClearLogs
	Loaded          bool          // the source has been evaluated
	Unusable        bool
}

// Stats returns a snapshot of the counters.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	s := c.stats
	s.Loaded = c.loaded
	s.Unusable = c.failure != nil
	c.mu.Unlock()
	s.Logs = c.bridge.LogCount()
	s.DroppedLogs = c.bridge.Dropped()
	return s
}

// ResetStats zeroes the counters. Compiled state and logs are untouched.
func (c *Context) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}
