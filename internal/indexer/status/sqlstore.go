package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLStore persists cookie state in the indexer_cookies table so sessions
// survive process restarts.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a cookie store backed by the given database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// SaveCookies upserts a provider's cookie set.
func (s *SQLStore) SaveCookies(ctx context.Context, indexerID int64, cookies map[string]string, expiry time.Time) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indexer_cookies (indexer_id, cookies, expires_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (indexer_id) DO UPDATE SET
			cookies = excluded.cookies,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		indexerID, string(data), expiry.UTC())
	if err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

// LoadCookies returns all persisted, unexpired cookie sets.
func (s *SQLStore) LoadCookies(ctx context.Context) (map[int64]CookieEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT indexer_id, cookies, expires_at
		FROM indexer_cookies
		WHERE expires_at > CURRENT_TIMESTAMP`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]CookieEntry)
	for rows.Next() {
		var (
			id      int64
			data    string
			expires time.Time
		)
		if err := rows.Scan(&id, &data, &expires); err != nil {
			return nil, fmt.Errorf("failed to scan cookie row: %w", err)
		}
		var cookies map[string]string
		if err := json.Unmarshal([]byte(data), &cookies); err != nil {
			continue // skip corrupted rows rather than fail the warm-up
		}
		out[id] = CookieEntry{Cookies: cookies, Expiry: expires}
	}
	return out, rows.Err()
}

// ClearCookies removes a provider's persisted session.
func (s *SQLStore) ClearCookies(ctx context.Context, indexerID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM indexer_cookies WHERE indexer_id = ?`, indexerID)
	if err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}
