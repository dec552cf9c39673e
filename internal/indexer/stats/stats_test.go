package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/history"
)

func event(indexerID int64, eventType history.EventType, successful bool, data map[string]string) history.Event {
	return history.Event{
		IndexerID:  indexerID,
		Date:       time.Now().UTC(),
		EventType:  eventType,
		Successful: successful,
		Data:       data,
	}
}

func TestAggregate_CountsPerEventType(t *testing.T) {
	events := []history.Event{
		event(1, history.EventQuery, true, map[string]string{"elapsedTime": "120"}),
		event(1, history.EventQuery, false, nil),
		event(1, history.EventRss, true, map[string]string{"elapsedTime": "80"}),
		event(1, history.EventAuth, false, nil),
		event(1, history.EventGrab, true, map[string]string{"elapsedTime": "300"}),
		event(1, history.EventGrab, false, nil),
	}

	combined := Aggregate(events, []int64{1})
	require.Len(t, combined.Indexers, 1)

	s := combined.Indexers[0]
	assert.Equal(t, 2, s.NumberOfQueries)
	assert.Equal(t, 1, s.NumberOfFailedQueries)
	assert.Equal(t, 1, s.NumberOfRssQueries)
	assert.Equal(t, 0, s.NumberOfFailedRssQueries)
	assert.Equal(t, 1, s.NumberOfAuthQueries)
	assert.Equal(t, 1, s.NumberOfFailedAuthQueries)
	assert.Equal(t, 2, s.NumberOfGrabs)
	assert.Equal(t, 1, s.NumberOfFailedGrabs)
}

func TestAggregate_AverageExcludesCachedAndZeroElapsed(t *testing.T) {
	events := []history.Event{
		event(1, history.EventQuery, true, map[string]string{"elapsedTime": "100"}),
		event(1, history.EventQuery, true, map[string]string{"elapsedTime": "300"}),
		event(1, history.EventQuery, true, map[string]string{"elapsedTime": "900", "cached": "1"}),
		event(1, history.EventQuery, true, map[string]string{"elapsedTime": "0"}),
		event(1, history.EventQuery, true, nil),
	}

	combined := Aggregate(events, []int64{1})
	require.Len(t, combined.Indexers, 1)
	assert.Equal(t, int64(200), combined.Indexers[0].AverageResponseTime)
	assert.Equal(t, 5, combined.Indexers[0].NumberOfQueries)
}

func TestAggregate_NoSamplesMeansZeroAverage(t *testing.T) {
	events := []history.Event{
		event(1, history.EventQuery, true, map[string]string{"cached": "1", "elapsedTime": "500"}),
	}
	combined := Aggregate(events, []int64{1})
	require.Len(t, combined.Indexers, 1)
	assert.Zero(t, combined.Indexers[0].AverageResponseTime)
}

func TestAggregate_GrabAverageSeparateFromQueryAverage(t *testing.T) {
	events := []history.Event{
		event(1, history.EventQuery, true, map[string]string{"elapsedTime": "100"}),
		event(1, history.EventGrab, true, map[string]string{"elapsedTime": "500"}),
	}
	combined := Aggregate(events, []int64{1})
	require.Len(t, combined.Indexers, 1)
	assert.Equal(t, int64(100), combined.Indexers[0].AverageResponseTime)
	assert.Equal(t, int64(500), combined.Indexers[0].AverageGrabResponseTime)
}

func TestAggregate_RequestedIdleProvidersGetZeroRows(t *testing.T) {
	events := []history.Event{
		event(2, history.EventQuery, true, nil),
	}

	combined := Aggregate(events, []int64{1, 2, 3})
	require.Len(t, combined.Indexers, 3)

	assert.Equal(t, int64(1), combined.Indexers[0].IndexerID)
	assert.Zero(t, combined.Indexers[0].NumberOfQueries)
	assert.Equal(t, int64(2), combined.Indexers[1].IndexerID)
	assert.Equal(t, 1, combined.Indexers[1].NumberOfQueries)
	assert.Equal(t, int64(3), combined.Indexers[2].IndexerID)
	assert.Zero(t, combined.Indexers[2].NumberOfQueries)
}

func TestAggregate_UserAgentAndHostGroupings(t *testing.T) {
	events := []history.Event{
		event(1, history.EventQuery, true, map[string]string{"source": "Radarr", "host": "indexer-a.example.com"}),
		event(1, history.EventQuery, true, map[string]string{"source": "Radarr", "host": "indexer-a.example.com"}),
		event(2, history.EventGrab, true, map[string]string{"source": "Sonarr", "host": "indexer-b.example.com"}),
		event(2, history.EventQuery, true, nil),
		// Auth traffic never shows up in source or host groupings.
		event(1, history.EventAuth, true, map[string]string{"source": "Radarr", "host": "indexer-a.example.com"}),
	}

	combined := Aggregate(events, nil)

	require.Len(t, combined.UserAgents, 3)
	assert.Equal(t, "Other", combined.UserAgents[0].UserAgent)
	assert.Equal(t, 1, combined.UserAgents[0].NumberOfQueries)
	assert.Equal(t, "Radarr", combined.UserAgents[1].UserAgent)
	assert.Equal(t, 2, combined.UserAgents[1].NumberOfQueries)
	assert.Equal(t, "Sonarr", combined.UserAgents[2].UserAgent)
	assert.Equal(t, 1, combined.UserAgents[2].NumberOfGrabs)
	assert.Zero(t, combined.UserAgents[2].NumberOfQueries)

	require.Len(t, combined.Hosts, 3)
	assert.Equal(t, "Other", combined.Hosts[0].Host)
	assert.Equal(t, "indexer-a.example.com", combined.Hosts[1].Host)
	assert.Equal(t, 2, combined.Hosts[1].NumberOfQueries)
	assert.Equal(t, "indexer-b.example.com", combined.Hosts[2].Host)
	assert.Equal(t, 1, combined.Hosts[2].NumberOfGrabs)
}

func TestAggregate_Empty(t *testing.T) {
	combined := Aggregate(nil, nil)
	assert.Empty(t, combined.Indexers)
	assert.Empty(t, combined.UserAgents)
	assert.Empty(t, combined.Hosts)
}
