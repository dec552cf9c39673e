package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store provides history persistence.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a history store.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record appends one event to the log.
func (s *Store) Record(ctx context.Context, ev Event) error {
	var dataJSON sql.NullString
	if len(ev.Data) > 0 {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		dataJSON = sql.NullString{String: string(raw), Valid: true}
	}

	date := ev.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexer_history (indexer_id, date, event_type, successful, data)
		VALUES (?, ?, ?, ?, ?)`,
		ev.IndexerID, date.UTC(), string(ev.EventType), ev.Successful, dataJSON)
	if err != nil {
		return fmt.Errorf("failed to record history event: %w", err)
	}
	return nil
}

// Between returns events with start <= date < end, oldest first.
func (s *Store) Between(ctx context.Context, start, end time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, indexer_id, date, event_type, successful, data
		FROM indexer_history
		WHERE date >= ? AND date < ?
		ORDER BY date ASC, id ASC`,
		start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev       Event
			evType   string
			dataJSON sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.IndexerID, &ev.Date, &evType, &ev.Successful, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		ev.EventType = EventType(evType)
		ev.Date = ev.Date.UTC()
		if dataJSON.Valid {
			if err := json.Unmarshal([]byte(dataJSON.String), &ev.Data); err != nil {
				s.logger.Warn().Err(err).Int64("id", ev.ID).Msg("Skipping malformed event data")
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Cleanup deletes events older than the cutoff and returns the count.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM indexer_history WHERE date < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Time("olderThan", olderThan).Msg("History cleanup complete")
	}
	return n, nil
}
