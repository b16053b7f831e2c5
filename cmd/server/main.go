package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/joho/godotenv"

	"github.com/dgallion1/pagemirror/internal/api"
	"github.com/dgallion1/pagemirror/internal/config"
	"github.com/dgallion1/pagemirror/internal/confluence"
	"github.com/dgallion1/pagemirror/internal/enrich"
	"github.com/dgallion1/pagemirror/internal/links"
	"github.com/dgallion1/pagemirror/internal/render"
	"github.com/dgallion1/pagemirror/internal/urlspace"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Local .env, if present.
	godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Process-scoped title cache, injected rather than ambient.
	titleCache, err := lru.New[string, string](cfg.TitleCacheSize)
	if err != nil {
		log.Error("title cache init failed", "error", err)
		os.Exit(1)
	}

	client := confluence.NewClient(cfg.ConfluenceBaseURL, cfg.ConfluenceEmail, cfg.ConfluenceAPIToken)
	urls := urlspace.New(cfg.ConfluenceBaseURL, cfg.LocalBaseURL)
	linkEngine := links.NewEngine(urls, client, titleCache, log, cfg.MaxConcurrentFetch, cfg.FetchTimeout)
	pipeline := enrich.NewPipeline(linkEngine, cfg.ConfluenceBaseURL, log)
	renderer := render.New(urls)

	srv := api.NewServer(client, pipeline, renderer, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)

		client.Close()
	}()

	log.Info("starting pagemirror", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
