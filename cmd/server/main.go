package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airline_ops/internal/api"
	"airline_ops/internal/catalog"
	"airline_ops/internal/config"
	"airline_ops/internal/game"
	"airline_ops/internal/logger"
	"airline_ops/internal/models"
	"airline_ops/internal/rand"
	"airline_ops/internal/store"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()

	log.Info("Starting airline server",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"data_dir", cfg.Data.Dir)

	cat, err := loadCatalog(cfg.Data)
	if err != nil {
		return err
	}
	log.Info("Catalog loaded",
		"airports", len(cat.Airports()),
		"aircraft", len(cat.Aircraft()))

	engine := game.NewEngine(cat, rand.New(cfg.Game.RNGSeed))
	engine.SetLogger(log)
	engine.SetSavePath(cfg.Data.SavePath)

	sinks := attachSinks(engine, cfg, log)
	defer sinks.close()

	if err := engine.LoadLatest(cfg.Data.SavePath, sinks.archive); err == nil {
		log.Info("Loaded savegame", "path", cfg.Data.SavePath, "tick", engine.State().Tick)
	} else {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Could not load savegame, starting a new game", "path", cfg.Data.SavePath, "error", err)
		}
		engine.NewGame(cfg.Game.StartingCash, cfg.Game.DemandVariability)
	}
	engine.RecalcUtilization()

	opts := api.Options{
		CORSOrigins: cfg.CORS.Origins,
		RateLimit:   cfg.RateLimit,
		Logger:      log,
	}
	if sinks.ledger != nil {
		opts.Ledger = sinks.ledger
	}
	handler := api.New(engine, opts)
	defer handler.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	serveErr := g.Wait()

	// Close pauses the loop; a running game should resume on next start.
	running := engine.Running()
	if err := engine.Close(); err != nil {
		log.Warn("Failed to close persistence sinks", "error", err)
	}
	if running {
		st := engine.State()
		st.IsRunning = true
		engine.SetState(st)
	}
	if err := engine.SaveState(""); err != nil {
		log.Error("Failed to save state on shutdown", "error", err)
	}
	return serveErr
}

// loadCatalog reads the airport CSV and aircraft JSON concurrently.
func loadCatalog(cfg config.DataConfig) (*catalog.Catalog, error) {
	var (
		airports []models.Airport
		aircraft []models.Aircraft
		eg       errgroup.Group
	)
	eg.Go(func() error {
		var err error
		if airports, err = catalog.LoadAirportsCSV(cfg.AirportsCSV); err != nil {
			return fmt.Errorf("failed to load airports: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		if aircraft, err = catalog.LoadAircraftJSON(cfg.AircraftJSON); err != nil {
			return fmt.Errorf("failed to load aircraft: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return catalog.New(airports, aircraft), nil
}

type sinkSet struct {
	ledger  *store.Ledger
	archive *store.Archive
	closers []func() error
	log     *slog.Logger
}

func (s *sinkSet) close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.log.Warn("Failed to close client", "error", err)
		}
	}
}

// attachSinks registers the optional persistence sinks. A sink that fails
// to open is skipped with a warning.
func attachSinks(engine *game.Engine, cfg *config.Config, log *slog.Logger) *sinkSet {
	s := &sinkSet{log: log}

	if cfg.Store.LedgerDB != "" {
		l, err := store.OpenLedger(cfg.Store.LedgerDB)
		if err != nil {
			log.Warn("Ledger disabled", "path", cfg.Store.LedgerDB, "error", err)
		} else {
			s.ledger = l
			engine.AddSink(l)
			log.Info("Ledger enabled", "path", cfg.Store.LedgerDB)
		}
	}

	if cfg.Store.ArchiveEvery > 0 && cfg.Store.ArchiveDir != "" {
		s.archive = store.NewArchive(cfg.Store.ArchiveDir, cfg.Store.ArchiveEvery)
		engine.AddSink(s.archive)
		log.Info("Archive enabled", "dir", cfg.Store.ArchiveDir, "every", cfg.Store.ArchiveEvery)
	}

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := store.ConnectRedis(ctx, cfg.Redis.URL, cfg.Redis.Addr)
		cancel()
		if err != nil {
			log.Warn("Redis state cache disabled", "error", err)
		} else {
			engine.AddSink(store.NewStateCache(client))
			s.closers = append(s.closers, client.Close)
			log.Info("Redis state cache enabled")
		}
	}

	return s
}
