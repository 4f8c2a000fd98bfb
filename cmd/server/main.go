package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/osoylu/mailvault"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	envFile := flag.String("env", "", "Path to .env file (optional)")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			slog.Error("loading env file", "path", *envFile, "error", err)
			os.Exit(1)
		}
	} else {
		// Best effort: a missing .env just means plain process env.
		_ = godotenv.Load()
	}

	cfg := mailvault.FromEnv()

	engine, err := mailvault.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Warm the embedding backend off the request path.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := engine.Warmup(ctx); err != nil {
			slog.Warn("embedding warmup failed", "error", err)
		}
	}()

	h := newHandler(engine)

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(corsMiddleware(os.Getenv("CORS_ORIGINS")))
	r.Use(requestIDMiddleware)
	r.Use(logMiddleware)
	r.Use(authMiddleware(cfg.AuthToken))

	r.Post("/ingest/gmail", h.handleIngest)
	r.Head("/ingest/gmail/exists", h.handleExists)
	r.Get("/ingest/gmail/exists", h.handleExists)
	r.Post("/search", h.handleSearch)
	r.Post("/ask", h.handleAsk)
	r.Post("/agent/act", h.handleAct)
	r.Get("/agents", h.handleAgents)
	r.Get("/items/external", h.handleLookupExternal)
	r.Delete("/items/{id}", h.handleDelete)
	r.Get("/health", h.handleHealth)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // ingest batches can run long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
