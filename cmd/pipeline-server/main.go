// cmd/pipeline-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"support-pipeline/internal/api"
	"support-pipeline/internal/classifier"
	"support-pipeline/internal/common/config"
	"support-pipeline/internal/common/database"
	"support-pipeline/internal/common/logger"
	"support-pipeline/internal/common/observability"
	"support-pipeline/internal/genai"
	"support-pipeline/internal/notify"
	"support-pipeline/internal/pipeline"
	"support-pipeline/internal/stages/advisor"
	"support-pipeline/internal/stages/decider"
	"support-pipeline/internal/stages/inferencer"
	"support-pipeline/internal/stages/validator"
	"support-pipeline/internal/store"
	"support-pipeline/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("pipeline-server")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var indexer api.Indexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = store.NewDecisionIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch disabled, decision search will not be available")
	}

	// --- Persistence layers ---
	pgStore := store.NewPostgresStore(pg.DB, log)
	cache := store.NewDecisionCache(
		redis.Client,
		time.Duration(cfg.Database.Redis.CacheTTL)*time.Second,
		log,
	)

	// --- Model and text-generation clients ---
	clf := classifier.NewClient(cfg.Classifier, log)
	gen := genai.NewClient(cfg.GenAI, log)

	// --- Decision stages ---
	stageTimeout := config.GetDuration(cfg.Pipeline.StageTimeout)

	validatorCfg := validator.DefaultConfig()
	inferencerCfg := inferencer.DefaultConfig()
	inferencerCfg.Timeout = config.GetDuration(cfg.Classifier.Timeout)
	deciderCfg := decider.DefaultConfig()
	deciderCfg.Timeout = stageTimeout
	advisorCfg := advisor.DefaultConfig()
	advisorCfg.Timeout = stageTimeout

	orchestrator := pipeline.New(
		validator.NewHandler(validatorCfg, log),
		inferencer.NewHandler(inferencerCfg, clf, log),
		decider.NewHandler(deciderCfg, gen, log),
		advisor.NewHandler(advisorCfg, gen, log),
		pgStore,
		log,
	)

	// --- Terminal-outcome notifications (optional) ---
	var notifier api.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		n, err := notify.NewNotifier(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Warn("notifier initialization failed, continuing without notifications", zap.Error(err))
		} else {
			notifier = n
			zapLog.Info("Notifier initialized")
		}
	}

	apiServer := api.NewServer(orchestrator, pgStore, cache, indexer, notifier, log).WithObserver(obs)
	if cfg.Pipeline.StageCatalogPath != "" {
		catalog, err := registry.LoadRegistry(cfg.Pipeline.StageCatalogPath)
		if err != nil {
			zapLog.Warn("stage catalog load failed, serving the built-in catalog", zap.Error(err))
		} else {
			apiServer.WithStageCatalog(catalog)
			zapLog.Info("Stage catalog loaded", zap.String("path", cfg.Pipeline.StageCatalogPath))
		}
	}

	mux := apiServer.Routes()
	mux.Handle("GET /metrics", promhttp.Handler())
	// pprof registers itself on the default mux
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Pipeline server stopped")
}
