package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeTracker/internal/clock"
	"timeTracker/internal/config"
	"timeTracker/internal/handlers"
	"timeTracker/internal/logger"
	"timeTracker/internal/middleware"
	"timeTracker/internal/repository/entry/inmemory"
	"timeTracker/internal/repository/entry/postgres"
	"timeTracker/internal/service"
	"timeTracker/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(cfg.Logging.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	var entryRepo service.EntryRepository
	switch cfg.Repository.Type {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("Не удалось подключиться к БД", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(); err != nil {
			logger.Error("Не удалось применить миграции", err)
			os.Exit(1)
		}
		entryRepo = pg
	default:
		entryRepo = inmemory.NewEntryStorage(clk)
	}

	entryService := service.NewTimerService(entryRepo, clk)
	entryHandler := handlers.NewEntryHandler(entryService)

	watchdog := worker.NewWatchdog(entryRepo, clk, &cfg.Watchdog.Interval, &cfg.Watchdog.Threshold)
	go watchdog.Start(ctx)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.RateLimit(100))

	r.Route("/entries", func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Get("/", entryHandler.ListEntries) // GET /entries
		r.Post("/", entryHandler.PostEntry)  // POST /entries

		r.Post("/start", entryHandler.StartTimer)  // POST /entries/start
		r.Get("/current", entryHandler.GetRunning) // GET /entries/current
		r.Get("/stats", entryHandler.GetStats)     // GET /entries/stats

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", entryHandler.GetEntryByID)       // GET /entries/{id}
			r.Put("/", entryHandler.UpdateEntryByID)    // PUT /entries/{id}
			r.Delete("/", entryHandler.DeleteEntryByID) // DELETE /entries/{id}

			r.Post("/stop", entryHandler.StopTimer) // POST /entries/{id}/stop
		})
	})

	r.Get("/health", entryHandler.HealthCheck)

	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: r,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Сервер упал", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Останавливаем сервер")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Сервер не остановился вовремя", err)
	}
}
