package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fetcharr/fetcharr/internal/api"
	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/database"
	"github.com/fetcharr/fetcharr/internal/history"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/capabilities"
	"github.com/fetcharr/fetcharr/internal/indexer/definition"
	"github.com/fetcharr/fetcharr/internal/indexer/newznab"
	"github.com/fetcharr/fetcharr/internal/indexer/search"
	"github.com/fetcharr/fetcharr/internal/indexer/status"
	"github.com/fetcharr/fetcharr/internal/logger"
	"github.com/fetcharr/fetcharr/internal/scheduler"
)

const (
	transportTimeout = 60 * time.Second
	discoveryTimeout = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Path:        cfg.Logging.Path,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
		Compress:    cfg.Logging.Compress,
		CaptureSize: 1000,
	})
	defer log.Close()

	log.Info().
		Str("logLevel", cfg.Logging.Level).
		Str("definitions", cfg.Definitions.Dir).
		Msg("starting fetcharr")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()

	tracker := status.NewTracker(status.DefaultBackoffConfig(), log.Logger).
		WithStore(ctx, status.NewSQLStore(db.Conn()))

	capsStore := capabilities.NewSQLStore(db.Conn())
	capsProvider := capabilities.NewProvider(log.Logger, func(key string, caps *indexer.Capabilities) {
		if err := capsStore.Save(context.Background(), key, caps); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to persist capabilities")
		}
	})
	if persisted, err := capsStore.LoadAll(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to load persisted capabilities")
	} else {
		for key, caps := range persisted {
			capsProvider.Put(key, caps)
		}
	}

	transport := indexer.NewHTTPTransport(transportTimeout)

	loader := definition.NewLoader(cfg.Definitions.Dir, log.Logger)
	loaded, err := loader.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load indexer definitions")
	}

	providers := buildProviders(ctx, loaded, transport, capsProvider, log)

	histStore := history.NewStore(db.Conn(), log.Logger)

	pipeline := indexer.NewPipeline(transport, tracker, log.Logger,
		indexer.WithHistory(histStore))

	searchSvc := search.NewService(pipeline, tracker, log.Logger,
		search.WithProviderTimeout(cfg.Search.ProviderTimeout),
		search.WithGlobalTimeout(cfg.Search.GlobalTimeout))

	server := api.NewServer(cfg, providers, pipeline, searchSvc, tracker, histStore, log, log.Logger)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	retention := cfg.History.RetentionDays
	if err := sched.Register(scheduler.Task{
		ID:         "history-cleanup",
		Name:       "History Cleanup",
		Cron:       "0 3 * * *",
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -retention)
			removed, err := histStore.Cleanup(ctx, cutoff)
			if err != nil {
				return err
			}
			if removed > 0 {
				log.Info().Int64("removed", removed).Msg("pruned old history events")
			}
			return nil
		},
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to register history cleanup task")
	}
	server.SetScheduler(sched)
	sched.Start()

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}

// buildProviders constructs one provider per loaded definition. Newznab
// and torznab providers go through capability discovery first, falling
// back to the capabilities declared in their definition file when the
// endpoint is unreachable. Definitions that fail to build are logged and
// skipped.
func buildProviders(ctx context.Context, loaded []definition.Loaded, transport indexer.Transport, capsProvider *capabilities.Provider, log *logger.Logger) []*indexer.Provider {
	providers := make([]*indexer.Provider, 0, len(loaded))
	for _, ld := range loaded {
		var caps *indexer.Capabilities
		if ld.File.Newznab != nil && ld.Definition.Enabled {
			fetchCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
			discovered, err := capsProvider.Get(fetchCtx, capsKey(ld), newznab.CapsFetcher{
				Transport: transport,
				Def:       ld.Definition,
				Settings:  *ld.File.Newznab,
			}, definition.Declared(ld.File))
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("indexer", ld.Definition.Name).Msg("capability discovery failed")
			} else {
				caps = discovered
			}
		}

		prov, err := definition.BuildWith(ld, caps)
		if err != nil {
			log.Warn().Err(err).Str("indexer", ld.Definition.Name).Msg("skipping indexer")
			continue
		}
		providers = append(providers, prov)
		log.Info().
			Str("indexer", ld.Definition.Name).
			Str("implementation", ld.File.Implementation).
			Bool("enabled", ld.Definition.Enabled).
			Msg("indexer configured")
	}
	return providers
}

// capsKey is the persistence identity for a provider's discovered
// capabilities. The definition file ID survives renumbering when files
// are added or removed, so prefer it over the assigned numeric ID.
func capsKey(ld definition.Loaded) string {
	if ld.File.ID != "" {
		return ld.File.ID
	}
	return ld.Definition.Name
}
