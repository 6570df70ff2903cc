package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/wikipub/internal/api"
	"github.com/dgallion1/wikipub/internal/config"
	"github.com/dgallion1/wikipub/internal/matcher"
	"github.com/dgallion1/wikipub/internal/pipeline"
	"github.com/dgallion1/wikipub/internal/preserve"
	"github.com/dgallion1/wikipub/internal/stats"
	"github.com/dgallion1/wikipub/internal/wiki"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	wc := wiki.NewClient(cfg.WikiBaseURL, cfg.WikiUser, cfg.WikiAPIToken)
	engine := preserve.NewEngine(matcher.Options{
		Threshold: cfg.PreserveThreshold,
		Exclusive: cfg.PreserveExclusive,
	}, log)
	st := stats.New(cfg.StatsWindow)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, wc, engine, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, engine, st, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		wc.Close()
	}()

	log.Info("starting wikipub",
		"port", cfg.Port,
		"wiki", cfg.WikiBaseURL,
		"threshold", cfg.PreserveThreshold,
		"exclusive", cfg.PreserveExclusive,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
