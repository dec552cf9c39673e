// Package history stores the append-only event log of provider activity.
// The statistics aggregator reads time-windowed slices from it; the
// execution pipeline appends to it.
package history

import (
	"time"
)

// EventType identifies what kind of provider activity an event records.
type EventType string

const (
	EventQuery EventType = "query"
	EventRss   EventType = "rss"
	EventAuth  EventType = "auth"
	EventGrab  EventType = "grab"
)

// Well-known keys of Event.Data.
const (
	DataElapsedTime = "elapsedTime" // milliseconds, stringified int
	DataSource      = "source"      // requesting user agent / application
	DataHost        = "host"        // provider host contacted
	DataCached      = "cached"      // "1" when served from cache
	DataQuery       = "query"
)

// Event is one recorded provider interaction.
type Event struct {
	ID         int64             `json:"id"`
	IndexerID  int64             `json:"indexerId"`
	Date       time.Time         `json:"date"`
	EventType  EventType         `json:"eventType"`
	Successful bool              `json:"successful"`
	Data       map[string]string `json:"data,omitempty"`
}

// DataValue returns a data field, or "" when absent.
func (e *Event) DataValue(key string) string {
	if e.Data == nil {
		return ""
	}
	return e.Data[key]
}
