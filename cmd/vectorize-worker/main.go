// Command vectorize-worker runs the worker loop that drains the durable
// work queue: it reads leased batches, dispatches each to its provider,
// applies the resulting embeddings, and exposes /healthz and /metrics for
// operators.
//
// Configuration is loaded from environment variables (see internal/config).
// On any startup error the process logs and exits with status 1.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tembo-io/vectorize-core/internal/applier"
	"github.com/tembo-io/vectorize-core/internal/config"
	"github.com/tembo-io/vectorize-core/internal/detector"
	"github.com/tembo-io/vectorize-core/internal/logger"
	"github.com/tembo-io/vectorize-core/internal/providers"
	"github.com/tembo-io/vectorize-core/internal/queue"
	"github.com/tembo-io/vectorize-core/internal/registry"
	"github.com/tembo-io/vectorize-core/internal/tokenizer"
	"github.com/tembo-io/vectorize-core/internal/worker"
)

func main() {
	log := logger.New("vectorize-worker")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	cfg.LogStartup(log)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}

	est, err := tokenizer.NewEstimator()
	if err != nil {
		log.Fatal().Err(err).Msg("tokenizer")
	}

	reg := registry.New(registry.NewPostgresStore(db))
	det := detector.New(db, est)
	q := queue.New(db, cfg.QueueName, cfg.VisibilityTimeout)
	app := applier.New(db)

	providerCfg := providers.Config{
		OpenAIAPIKey:            cfg.OpenAIAPIKey,
		CohereAPIKey:            cfg.CohereAPIKey,
		SentenceTransformersURL: cfg.SentenceTransformersURL,
		OllamaURL:               cfg.OllamaURL,
		PortkeyAPIKey:           cfg.PortkeyAPIKey,
		PortkeyVirtualKey:       cfg.PortkeyVirtualKey,
		VoyageAPIKey:            cfg.VoyageAPIKey,
		TemboAPIKey:             cfg.TemboAPIKey,
	}

	w := worker.New(q, reg, det, app, providerCfg, cfg.MaxRetries,
		cfg.PollInterval, cfg.PollIntervalError, cfg.BatchSize, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthSrv := newHealthServer(ctx, cfg.HealthPort, db)
	healthErrCh := serveHTTP(healthSrv, log)

	workerErrCh := make(chan error, 1)
	go func() { workerErrCh <- w.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("health server forced shutdown")
		}
		<-workerErrCh
		log.Info().Msg("worker exited")
	case err := <-workerErrCh:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("worker exited with error")
			os.Exit(1)
		}
	case err := <-healthErrCh:
		log.Error().Err(err).Msg("health server exited with error")
		os.Exit(1)
	}
}

func newHealthServer(ctx context.Context, port int, db *sql.DB) *http.Server {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}
