package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/stats"
)

// SearchRequest represents a search request.
type SearchRequest struct {
	Query      string `query:"query"`
	Type       string `query:"type"` // search, movie, tvsearch, music, book
	Categories string `query:"categories"`
	ImdbID     string `query:"imdbId"`
	TmdbID     int    `query:"tmdbId"`
	TvdbID     int    `query:"tvdbId"`
	Season     int    `query:"season"`
	Episode    int    `query:"episode"`
	Year       int    `query:"year"`
	Artist     string `query:"artist"`
	Album      string `query:"album"`
	Author     string `query:"author"`
	Title      string `query:"title"`
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
	Source     string `query:"source"` // requesting application, for statistics
}

// handleSearch runs an aggregate search across all enabled providers.
// GET /api/v1/search?query=...&type=...&categories=2000,5040
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid search parameters")
	}

	criteria := &indexer.SearchCriteria{
		Type:    searchType(req.Type),
		Query:   req.Query,
		ImdbID:  req.ImdbID,
		TmdbID:  req.TmdbID,
		TvdbID:  req.TvdbID,
		Season:  req.Season,
		Episode: req.Episode,
		Year:    req.Year,
		Artist:  req.Artist,
		Album:   req.Album,
		Author:  req.Author,
		Title:   req.Title,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}
	if cats, err := parseCategories(req.Categories); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid categories")
	} else {
		criteria.Categories = cats
	}

	ctx := c.Request().Context()
	if req.Source != "" {
		ctx = indexer.WithSource(ctx, req.Source)
	}

	result, err := s.searchSvc.Search(ctx, s.providers, criteria)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// IndexerView is the list representation of one configured provider.
type IndexerView struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Protocol indexer.Protocol `json:"protocol"`
	Privacy  indexer.Privacy  `json:"privacy"`
	Enabled  bool             `json:"enabled"`
	Priority int              `json:"priority"`
	Health   string           `json:"health"`
}

// handleListIndexers returns all configured providers with their health.
// GET /api/v1/indexers
func (s *Server) handleListIndexers(c echo.Context) error {
	now := time.Now()
	views := make([]IndexerView, 0, len(s.providers))
	for _, prov := range s.providers {
		views = append(views, IndexerView{
			ID:       prov.Definition.ID,
			Name:     prov.Definition.Name,
			Protocol: prov.Definition.Protocol,
			Privacy:  prov.Definition.Privacy,
			Enabled:  prov.Definition.Enabled,
			Priority: prov.Definition.Priority,
			Health:   string(s.tracker.Health(prov.Definition.ID, now)),
		})
	}
	return c.JSON(http.StatusOK, views)
}

// handleGetIndexer returns one provider with its capability surface.
// GET /api/v1/indexers/:id
func (s *Server) handleGetIndexer(c echo.Context) error {
	prov, err := s.providerByID(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"definition":   prov.Definition,
		"capabilities": prov.Capabilities,
		"categories":   prov.Capabilities.StandardCategoryTree(),
	})
}

// handleIndexerStatus returns the provider's failure/backoff snapshot and
// any configuration advisories (e.g. a lapsing paid tier).
// GET /api/v1/indexers/:id/status
func (s *Server) handleIndexerStatus(c echo.Context) error {
	prov, err := s.providerByID(c.Param("id"))
	if err != nil {
		return err
	}
	resp := map[string]any{
		"status": s.tracker.Snapshot(prov.Definition.ID),
	}
	if prov.Warnings != nil {
		if warnings := prov.Warnings(time.Now()); len(warnings) > 0 {
			resp["warnings"] = warnings
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleTestIndexer runs the configuration-time round trip.
// POST /api/v1/indexers/:id/test
func (s *Server) handleTestIndexer(c echo.Context) error {
	prov, err := s.providerByID(c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.pipeline.Test(c.Request().Context(), prov); err != nil {
		return c.JSON(http.StatusOK, map[string]any{
			"success": false,
			"code":    indexer.ErrorCode(err),
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// DownloadRequest identifies the release link to grab.
type DownloadRequest struct {
	Link string `json:"link"`
}

// handleDownload fetches a release payload through the provider.
// POST /api/v1/indexers/:id/download
func (s *Server) handleDownload(c echo.Context) error {
	prov, err := s.providerByID(c.Param("id"))
	if err != nil {
		return err
	}
	var req DownloadRequest
	if err := c.Bind(&req); err != nil || req.Link == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "link is required")
	}

	data, err := s.pipeline.Download(c.Request().Context(), prov, req.Link)
	if err != nil {
		var typed *indexer.Error
		if errors.As(err, &typed) {
			return echo.NewHTTPError(httpStatusFor(typed.Code), typed.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	contentType := "application/x-nzb"
	if prov.Definition.Protocol == indexer.ProtocolTorrent {
		contentType = "application/x-bittorrent"
	}
	return c.Blob(http.StatusOK, contentType, data)
}

// handleHistory returns events in a window, oldest first.
// GET /api/v1/history?start=...&end=...
func (s *Server) handleHistory(c echo.Context) error {
	start, end, err := parseWindow(c)
	if err != nil {
		return err
	}
	events, err := s.histStore.Between(c.Request().Context(), start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

// handleStats aggregates history into per-indexer statistics over a window.
// GET /api/v1/stats?start=...&end=...
func (s *Server) handleStats(c echo.Context) error {
	start, end, err := parseWindow(c)
	if err != nil {
		return err
	}
	events, err := s.histStore.Between(c.Request().Context(), start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	ids := make([]int64, 0, len(s.providers))
	for _, prov := range s.providers {
		ids = append(ids, prov.Definition.ID)
	}
	return c.JSON(http.StatusOK, stats.Aggregate(events, ids))
}

// handleRecentLogs serves the in-memory log window.
// GET /api/v1/logs/recent
func (s *Server) handleRecentLogs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.appLogger.Recent())
}

// handleListTasks lists registered background tasks.
// GET /api/v1/scheduler/tasks
func (s *Server) handleListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.Tasks())
}

// handleRunTask triggers a background task outside its schedule.
// POST /api/v1/scheduler/tasks/:id/run
func (s *Server) handleRunTask(c echo.Context) error {
	if err := s.sched.RunNow(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) providerByID(raw string) (*indexer.Provider, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid indexer id")
	}
	for _, prov := range s.providers {
		if prov.Definition.ID == id {
			return prov, nil
		}
	}
	return nil, echo.NewHTTPError(http.StatusNotFound, "indexer not found")
}

func searchType(raw string) indexer.SearchType {
	switch strings.ToLower(raw) {
	case "movie":
		return indexer.SearchTypeMovie
	case "tvsearch", "tv":
		return indexer.SearchTypeTV
	case "music":
		return indexer.SearchTypeMusic
	case "book":
		return indexer.SearchTypeBook
	default:
		return indexer.SearchTypeBasic
	}
}

func parseCategories(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// parseWindow reads the start/end query range, defaulting to the last 30
// days ending now.
func parseWindow(c echo.Context) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	if raw := c.QueryParam("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid start time")
		}
		start = t.UTC()
	}
	if raw := c.QueryParam("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid end time")
		}
		end = t.UTC()
	}
	return start, end, nil
}

func httpStatusFor(code string) int {
	switch code {
	case indexer.ErrCodeDisabled:
		return http.StatusServiceUnavailable
	case indexer.ErrCodeAuth:
		return http.StatusUnauthorized
	case indexer.ErrCodeValidation, indexer.ErrCodeConfig:
		return http.StatusUnprocessableEntity
	case indexer.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
