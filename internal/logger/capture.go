package logger

import (
	"encoding/json"
	"sync"
)

const defaultCaptureSize = 1000

// Entry is one parsed log line kept for the recent-logs view.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Capture is an io.Writer that retains the most recent log entries in a
// fixed-size window. It sits behind the main log output so the API can
// serve recent logs without touching files.
type Capture struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewCapture creates a capture window of the given size.
func NewCapture(size int) *Capture {
	if size <= 0 {
		size = defaultCaptureSize
	}
	return &Capture{entries: make([]Entry, size)}
}

// Write implements io.Writer for zerolog JSON output. Lines that do not
// parse as JSON are counted as written and dropped.
func (c *Capture) Write(p []byte) (int, error) {
	entry, err := parseEntry(p)
	if err != nil {
		return len(p), nil
	}

	c.mu.Lock()
	c.entries[c.next] = entry
	c.next = (c.next + 1) % len(c.entries)
	if c.next == 0 {
		c.full = true
	}
	c.mu.Unlock()
	return len(p), nil
}

// Recent returns the captured entries, oldest first.
func (c *Capture) Recent() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.full {
		out := make([]Entry, c.next)
		copy(out, c.entries[:c.next])
		return out
	}
	out := make([]Entry, 0, len(c.entries))
	out = append(out, c.entries[c.next:]...)
	out = append(out, c.entries[:c.next]...)
	return out
}

func parseEntry(data []byte) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, err
	}

	entry := Entry{Fields: make(map[string]any)}
	if ts, ok := raw["time"].(string); ok {
		entry.Timestamp = ts
		delete(raw, "time")
	}
	if level, ok := raw["level"].(string); ok {
		entry.Level = level
		delete(raw, "level")
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	for k, v := range raw {
		entry.Fields[k] = v
	}
	return entry, nil
}
