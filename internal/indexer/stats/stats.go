// Package stats aggregates provider history events into per-indexer,
// per-application and per-host statistics.
package stats

import (
	"sort"
	"strconv"

	"github.com/fetcharr/fetcharr/internal/history"
)

// otherBucket groups events whose source or host was not recorded.
const otherBucket = "Other"

// IndexerStatistics summarizes one provider's activity over a window.
type IndexerStatistics struct {
	IndexerID   int64  `json:"indexerId"`
	IndexerName string `json:"indexerName,omitempty"`

	AverageResponseTime     int64 `json:"averageResponseTime"`     // ms
	AverageGrabResponseTime int64 `json:"averageGrabResponseTime"` // ms

	NumberOfQueries     int `json:"numberOfQueries"`
	NumberOfGrabs       int `json:"numberOfGrabs"`
	NumberOfRssQueries  int `json:"numberOfRssQueries"`
	NumberOfAuthQueries int `json:"numberOfAuthQueries"`

	NumberOfFailedQueries     int `json:"numberOfFailedQueries"`
	NumberOfFailedGrabs       int `json:"numberOfFailedGrabs"`
	NumberOfFailedRssQueries  int `json:"numberOfFailedRssQueries"`
	NumberOfFailedAuthQueries int `json:"numberOfFailedAuthQueries"`
}

// UserAgentStatistics summarizes activity per requesting application.
type UserAgentStatistics struct {
	UserAgent       string `json:"userAgent"`
	NumberOfQueries int    `json:"numberOfQueries"`
	NumberOfGrabs   int    `json:"numberOfGrabs"`
}

// HostStatistics summarizes activity per provider host.
type HostStatistics struct {
	Host            string `json:"host"`
	NumberOfQueries int    `json:"numberOfQueries"`
	NumberOfGrabs   int    `json:"numberOfGrabs"`
}

// Combined is the full aggregate over one history window.
type Combined struct {
	Indexers   []IndexerStatistics   `json:"indexers"`
	UserAgents []UserAgentStatistics `json:"userAgents"`
	Hosts      []HostStatistics      `json:"hosts"`
}

type accumulator struct {
	stats IndexerStatistics

	queryElapsedSum int64
	queryElapsedN   int64
	grabElapsedSum  int64
	grabElapsedN    int64
}

// Aggregate reduces a history window to combined statistics. Every ID in
// indexerIDs gets a row even with no events in the window, so dashboards
// show configured-but-idle providers as zeros. Events for providers outside
// indexerIDs still contribute rows of their own.
func Aggregate(events []history.Event, indexerIDs []int64) Combined {
	byIndexer := make(map[int64]*accumulator)
	for _, id := range indexerIDs {
		byIndexer[id] = &accumulator{stats: IndexerStatistics{IndexerID: id}}
	}

	userAgents := make(map[string]*UserAgentStatistics)
	hosts := make(map[string]*HostStatistics)

	for _, event := range events {
		acc := byIndexer[event.IndexerID]
		if acc == nil {
			acc = &accumulator{stats: IndexerStatistics{IndexerID: event.IndexerID}}
			byIndexer[event.IndexerID] = acc
		}
		acc.apply(event)

		// Auth round trips are engine housekeeping, not application
		// activity, so they stay out of the per-source groupings.
		if event.EventType == history.EventAuth {
			continue
		}
		applyGrouped(userAgents, hosts, event)
	}

	out := Combined{
		Indexers:   make([]IndexerStatistics, 0, len(byIndexer)),
		UserAgents: make([]UserAgentStatistics, 0, len(userAgents)),
		Hosts:      make([]HostStatistics, 0, len(hosts)),
	}
	for _, acc := range byIndexer {
		out.Indexers = append(out.Indexers, acc.finish())
	}
	for _, ua := range userAgents {
		out.UserAgents = append(out.UserAgents, *ua)
	}
	for _, h := range hosts {
		out.Hosts = append(out.Hosts, *h)
	}

	sort.Slice(out.Indexers, func(i, j int) bool {
		return out.Indexers[i].IndexerID < out.Indexers[j].IndexerID
	})
	sort.Slice(out.UserAgents, func(i, j int) bool {
		return out.UserAgents[i].UserAgent < out.UserAgents[j].UserAgent
	})
	sort.Slice(out.Hosts, func(i, j int) bool {
		return out.Hosts[i].Host < out.Hosts[j].Host
	})
	return out
}

func (a *accumulator) apply(event history.Event) {
	switch event.EventType {
	case history.EventQuery:
		a.stats.NumberOfQueries++
		if !event.Successful {
			a.stats.NumberOfFailedQueries++
		}
		if ms, ok := elapsedSample(event); ok {
			a.queryElapsedSum += ms
			a.queryElapsedN++
		}
	case history.EventRss:
		a.stats.NumberOfRssQueries++
		if !event.Successful {
			a.stats.NumberOfFailedRssQueries++
		}
		if ms, ok := elapsedSample(event); ok {
			a.queryElapsedSum += ms
			a.queryElapsedN++
		}
	case history.EventAuth:
		a.stats.NumberOfAuthQueries++
		if !event.Successful {
			a.stats.NumberOfFailedAuthQueries++
		}
	case history.EventGrab:
		a.stats.NumberOfGrabs++
		if !event.Successful {
			a.stats.NumberOfFailedGrabs++
		}
		if ms, ok := elapsedSample(event); ok {
			a.grabElapsedSum += ms
			a.grabElapsedN++
		}
	}
}

func (a *accumulator) finish() IndexerStatistics {
	out := a.stats
	if a.queryElapsedN > 0 {
		out.AverageResponseTime = a.queryElapsedSum / a.queryElapsedN
	}
	if a.grabElapsedN > 0 {
		out.AverageGrabResponseTime = a.grabElapsedSum / a.grabElapsedN
	}
	return out
}

// elapsedSample extracts a response time sample. Cached responses and
// events without a positive elapsed time are excluded so averages reflect
// real provider round trips only.
func elapsedSample(event history.Event) (int64, bool) {
	if event.DataValue(history.DataCached) == "1" {
		return 0, false
	}
	raw := event.DataValue(history.DataElapsedTime)
	if raw == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return 0, false
	}
	return ms, true
}

func applyGrouped(userAgents map[string]*UserAgentStatistics, hosts map[string]*HostStatistics, event history.Event) {
	source := event.DataValue(history.DataSource)
	if source == "" {
		source = otherBucket
	}
	ua := userAgents[source]
	if ua == nil {
		ua = &UserAgentStatistics{UserAgent: source}
		userAgents[source] = ua
	}

	host := event.DataValue(history.DataHost)
	if host == "" {
		host = otherBucket
	}
	hs := hosts[host]
	if hs == nil {
		hs = &HostStatistics{Host: host}
		hosts[host] = hs
	}

	if event.EventType == history.EventGrab {
		ua.NumberOfGrabs++
		hs.NumberOfGrabs++
	} else {
		ua.NumberOfQueries++
		hs.NumberOfQueries++
	}
}
