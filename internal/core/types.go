package core

import "time"

// LogEntry is a single console.log/warn/error captured from script.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
