package capabilities

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/categories"
)

// SQLStore persists discovered capability descriptors in the
// indexer_capabilities table so restarts skip rediscovery.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a capability store backed by the given database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// capsRecord is the storable shape of a capability descriptor. The mapping
// table is flattened to entries since it is rebuilt on load.
type capsRecord struct {
	SearchParams      []string `json:"searchParams"`
	TVSearchParams    []string `json:"tvSearchParams"`
	MovieSearchParams []string `json:"movieSearchParams"`
	MusicSearchParams []string `json:"musicSearchParams"`
	BookSearchParams  []string `json:"bookSearchParams"`
	SupportsRawSearch bool     `json:"supportsRawSearch,omitempty"`
	LimitsMax         int      `json:"limitsMax,omitempty"`
	LimitsDefault     int      `json:"limitsDefault,omitempty"`

	Mappings []capsMapping `json:"mappings,omitempty"`
}

type capsMapping struct {
	NativeID   string `json:"id"`
	StandardID int    `json:"cat"`
	NativeName string `json:"name,omitempty"`
}

// Save upserts one provider's capability descriptor.
func (s *SQLStore) Save(ctx context.Context, key string, caps *indexer.Capabilities) error {
	data, err := json.Marshal(toRecord(caps))
	if err != nil {
		return fmt.Errorf("failed to encode capabilities: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indexer_capabilities (indexer_key, capabilities, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (indexer_key) DO UPDATE SET
			capabilities = excluded.capabilities,
			updated_at = CURRENT_TIMESTAMP`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("failed to save capabilities: %w", err)
	}
	return nil
}

// LoadAll returns every persisted capability descriptor. Corrupted rows are
// skipped rather than failing the warm-up.
func (s *SQLStore) LoadAll(ctx context.Context) (map[string]*indexer.Capabilities, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT indexer_key, capabilities FROM indexer_capabilities`)
	if err != nil {
		return nil, fmt.Errorf("failed to load capabilities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*indexer.Capabilities)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("failed to scan capabilities row: %w", err)
		}
		var rec capsRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		out[key] = fromRecord(rec)
	}
	return out, rows.Err()
}

func toRecord(caps *indexer.Capabilities) capsRecord {
	rec := capsRecord{
		SearchParams:      caps.SearchParams,
		TVSearchParams:    caps.TVSearchParams,
		MovieSearchParams: caps.MovieSearchParams,
		MusicSearchParams: caps.MusicSearchParams,
		BookSearchParams:  caps.BookSearchParams,
		SupportsRawSearch: caps.SupportsRawSearch,
		LimitsMax:         caps.LimitsMax,
		LimitsDefault:     caps.LimitsDefault,
	}
	if caps.Categories != nil {
		for _, entry := range caps.Categories.Entries() {
			rec.Mappings = append(rec.Mappings, capsMapping{
				NativeID:   entry.NativeID,
				StandardID: entry.Category.ID,
				NativeName: entry.NativeName,
			})
		}
	}
	return rec
}

func fromRecord(rec capsRecord) *indexer.Capabilities {
	caps := &indexer.Capabilities{
		SearchParams:      rec.SearchParams,
		TVSearchParams:    rec.TVSearchParams,
		MovieSearchParams: rec.MovieSearchParams,
		MusicSearchParams: rec.MusicSearchParams,
		BookSearchParams:  rec.BookSearchParams,
		SupportsRawSearch: rec.SupportsRawSearch,
		LimitsMax:         rec.LimitsMax,
		LimitsDefault:     rec.LimitsDefault,
		Categories:        categories.NewMappings(),
	}
	for _, m := range rec.Mappings {
		caps.Categories.AddCategoryMapping(m.NativeID, m.StandardID, m.NativeName)
	}
	return caps
}
