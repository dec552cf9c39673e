// Package api exposes the search engine over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/search"
	"github.com/fetcharr/fetcharr/internal/indexer/status"
	"github.com/fetcharr/fetcharr/internal/logger"
	"github.com/fetcharr/fetcharr/internal/scheduler"
)

// Server handles HTTP requests for the fetcharr API.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
	cfg    *config.Config

	providers []*indexer.Provider
	pipeline  *indexer.Pipeline
	searchSvc *search.Service
	tracker   *status.Tracker
	histStore *history.Store
	appLogger *logger.Logger
	sched     *scheduler.Scheduler
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, providers []*indexer.Provider, pipeline *indexer.Pipeline, searchSvc *search.Service, tracker *status.Tracker, histStore *history.Store, appLogger *logger.Logger, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		logger:    log,
		cfg:       cfg,
		providers: providers,
		pipeline:  pipeline,
		searchSvc: searchSvc,
		tracker:   tracker,
		histStore: histStore,
		appLogger: appLogger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// SetScheduler attaches the background task scheduler and exposes its
// task endpoints. Call before Start.
func (s *Server) SetScheduler(sched *scheduler.Scheduler) {
	s.sched = sched
	if sched == nil {
		return
	}
	api := s.echo.Group("/api/v1")
	api.GET("/scheduler/tasks", s.handleListTasks)
	api.POST("/scheduler/tasks/:id/run", s.handleRunTask)
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/search", s.handleSearch)
	api.GET("/indexers", s.handleListIndexers)
	api.GET("/indexers/:id", s.handleGetIndexer)
	api.GET("/indexers/:id/status", s.handleIndexerStatus)
	api.POST("/indexers/:id/test", s.handleTestIndexer)
	api.POST("/indexers/:id/download", s.handleDownload)
	api.GET("/history", s.handleHistory)
	api.GET("/stats", s.handleStats)
	api.GET("/logs/recent", s.handleRecentLogs)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting API server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
