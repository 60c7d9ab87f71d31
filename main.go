package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realestate-leads/api"
	"realestate-leads/config"
	"realestate-leads/metrics"
	"realestate-leads/notify"
	"realestate-leads/scoring"
	"realestate-leads/scraper"
	"realestate-leads/scraper/browser"
	"realestate-leads/scraper/feed"
	"realestate-leads/scraper/fixture"
	"realestate-leads/services"
	"realestate-leads/storage"
	"realestate-leads/utils"
)

func main() {
	mode := flag.String("mode", "ingest", "ingest: one fetch/score/store pass; serve: HTTP API")
	every := flag.Duration("every", 0, "in serve mode, also run ingestion at this interval")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *mode, *every, cfg, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, mode string, every time.Duration, cfg *config.Config, logger *utils.Logger) error {
	logger.Info("=== Real-estate lead engine starting (%s) ===", mode)
	logger.Info("Config: backend: %s | sources: %v | concurrency: %d | rate: %dms",
		cfg.StorageBackend, cfg.Sources, cfg.MaxConcurrency, cfg.RateLimitMs)

	engine, err := cfg.Engine()
	if err != nil {
		return fmt.Errorf("scoring engine: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.NewRegistry()

	switch mode {
	case "ingest":
		ingestor, closeRaw, err := buildIngestor(cfg, engine, store, m, logger)
		if err != nil {
			return err
		}
		defer closeRaw()
		if _, err := ingestor.Run(ctx); err != nil {
			return err
		}
		insights := services.NewInsightService(store, logger)
		report, err := insights.Overview(ctx)
		if err != nil {
			return err
		}
		insights.Print(report)
		return nil

	case "serve":
		ingestor, closeRaw, err := buildIngestor(cfg, engine, store, m, logger)
		switch {
		case err != nil && every > 0:
			return err
		case err != nil:
			logger.Warn("On-demand ingestion disabled: %v", err)
		default:
			defer closeRaw()
			if every > 0 {
				go ingestLoop(ctx, ingestor, every, logger)
			}
		}
		srv := api.NewServer(api.Options{
			Properties: store,
			Analysis:   services.NewAnalysisService(store, engine, m, logger),
			Insights:   services.NewInsightService(store, logger),
			Deals:      services.NewDealService(store, store, cfg.DefaultCommissionPct, logger),
			Ingestor:   ingestor,
			Metrics:    m,
		}, logger)
		return srv.Run(ctx, ":"+cfg.APIPort)

	default:
		return fmt.Errorf("unknown mode %q (want ingest or serve)", mode)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		s, err := storage.NewPostgresStore(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect to PostgreSQL (is docker compose up?): %w", err)
		}
		return s, nil
	case config.BackendMongo:
		s, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		return s, nil
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

// buildIngestor wires sources, the raw CSV dump and the notifier. The
// returned func closes the CSV file.
func buildIngestor(cfg *config.Config, engine *scoring.Engine, store storage.PropertyStore, m *metrics.Registry, logger *utils.Logger) (*services.Ingestor, func(), error) {
	sources := buildSources(cfg, logger)
	if len(sources) == 0 {
		return nil, nil, errors.New("no sources enabled; set SOURCES")
	}

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath, 0)
	if err != nil {
		return nil, nil, err
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Warn("Telegram disabled: %v", err)
		} else {
			notifier = notify.Multi{notifier, tg}
		}
	}

	ingestor := services.NewIngestor(services.IngestOptions{
		Sources:   sources,
		Engine:    engine,
		Store:     store,
		RawWriter: csvWriter,
		Notifier:  notifier,
		Metrics:   m,
		Pool:      utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
	}, logger)
	return ingestor, func() { _ = csvWriter.Close() }, nil
}

func buildSources(cfg *config.Config, logger *utils.Logger) []scraper.Source {
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	var sources []scraper.Source

	if cfg.SourceEnabled("yad2") {
		sources = append(sources, feed.New(feed.Options{
			Name:       "yad2",
			BaseURL:    cfg.FeedBaseURL,
			Cities:     cfg.FeedCities,
			PageSize:   cfg.ListingsPerPage,
			Timeout:    timeout,
			MaxRetries: cfg.MaxRetries,
		}, logger))
	}
	browsers := []struct{ name, url, card string }{
		{"winwin", cfg.WinWinURL, ".property-item"},
		{"madlan", cfg.MadlanURL, ".property-card"},
	}
	for _, b := range browsers {
		if !cfg.SourceEnabled(b.name) {
			continue
		}
		sources = append(sources, browser.New(browser.Options{
			Name:        b.name,
			StartURL:    b.url,
			Selectors:   browser.DefaultSelectors(b.card),
			MaxPages:    cfg.PagesToScrape,
			MaxPerPage:  cfg.ListingsPerPage,
			ChromeBin:   cfg.ChromeBin,
			PageTimeout: 4 * timeout,
			RateLimitMs: cfg.RateLimitMs,
			MaxRetries:  cfg.MaxRetries,
		}, logger))
	}
	if cfg.SourceEnabled("fixture") {
		sources = append(sources, fixture.New("fixture", cfg.FixturePath))
	}
	return sources
}

func ingestLoop(ctx context.Context, ingestor *services.Ingestor, every time.Duration, logger *utils.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		_, err := ingestor.Run(ctx)
		switch {
		case errors.Is(err, services.ErrIngestRunning):
			logger.Info("Skipping scheduled ingestion: %v", err)
		case err != nil && ctx.Err() == nil:
			logger.Error("Scheduled ingestion failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
