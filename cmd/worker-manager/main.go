// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"circ-exchange/internal/common/camunda"
	"circ-exchange/internal/common/config"
	"circ-exchange/internal/common/database"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/messaging"
	"circ-exchange/internal/common/observability"
	"circ-exchange/internal/exchange"
	"circ-exchange/internal/matching"

	ac "circ-exchange/internal/workers/matching/analyze-compatibility"
	aq "circ-exchange/internal/workers/matching/ask-question"
	rc "circ-exchange/internal/workers/matching/rank-candidates"
	sl "circ-exchange/internal/workers/matching/search-listings"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("worker-manager", log)
	defer obs.Shutdown()
	if cfg.Tracing.Enabled {
		if err := obs.EnableTracing(observability.TracingConfig{
			ServiceName:    cfg.App.Name,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
		}); err != nil {
			zapLog.Fatal("tracing setup failed", zap.Error(err))
		}
	}

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ClientConfigFrom(cfg.Camunda), log)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch (optional) ---
	var es *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Redis (optional) ---
	var rdb *database.RedisClient
	if needsRedis(cfg) {
		rdb = database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Event publisher (optional) ---
	var publisher messaging.Publisher = messaging.NoopPublisher{}
	switch {
	case !cfg.Messaging.Enabled:
	case cfg.Messaging.Backend == config.MessagingBackendSNS:
		sp, err := messaging.NewSNSPublisher(ctx, cfg.Messaging.SNS.Region, cfg.Messaging.SNS.TopicARN, log)
		if err != nil {
			zapLog.Fatal("sns publisher setup failed", zap.Error(err))
		}
		publisher = sp
	default:
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.Messaging.URL
		if cfg.Messaging.Name != "" {
			natsCfg.Name = cfg.Messaging.Name
		}
		var nc *messaging.NATSClient
		err = retryWithBackoff(func() error {
			var err error
			nc, err = messaging.NewNATSClient(natsCfg, log)
			return err
		}, 10, 2*time.Second, zapLog, "NATS connection")
		if err != nil {
			zapLog.Fatal("nats failed after retries", zap.Error(err))
		}
		defer nc.Close()
		publisher = nc
	}

	api, err := exchange.NewFromConfig(cfg.Exchange, redisOf(rdb), log)
	if err != nil {
		zapLog.Fatal("exchange client setup failed", zap.Error(err))
	}

	deps, err := buildDependencies(ctx, cfg, pg, es, api, log)
	if err != nil {
		zapLog.Fatal("listing store setup failed", zap.Error(err))
	}
	zapLog.Info("Listing pool ready", zap.String("poolSource", cfg.Matching.PoolSource),
		zap.Bool("fallbackToLocal", cfg.Matching.FallbackToLocal),
		zap.Bool("textIndex", deps.searcher != nil),
	)

	// --- Workers ---
	registry := camunda.NewRegistry(zeebe.GetClient(), log)

	if wcfg := config.GetWorkerConfig(cfg, rc.TaskType); wcfg.Enabled {
		rcCfg := rc.LoadConfig()
		rcCfg.Options = matching.OptionsFromConfig(cfg.Matching)
		applyWorkerTimeout(&rcCfg.Timeout, wcfg)
		handler := rc.NewHandler(rcCfg, deps.pool, publisher, obs, log)
		registry.Register(rc.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, sl.TaskType); wcfg.Enabled {
		slCfg := sl.LoadConfig()
		applyWorkerTimeout(&slCfg.Timeout, wcfg)
		var searcher sl.Searcher
		if deps.searcher != nil {
			searcher = deps.searcher
		}
		handler := sl.NewHandler(slCfg, deps.pool, searcher, obs, log)
		registry.Register(sl.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, ac.TaskType); wcfg.Enabled {
		acCfg := ac.LoadConfig()
		applyWorkerTimeout(&acCfg.Timeout, wcfg)
		handler := ac.NewHandler(acCfg, deps.pool, api, publisher, obs, log)
		registry.Register(ac.TaskType, wcfg, handler.Handle)
	}

	if wcfg := config.GetWorkerConfig(cfg, aq.TaskType); wcfg.Enabled {
		aqCfg := aq.LoadConfig()
		applyWorkerTimeout(&aqCfg.Timeout, wcfg)
		handler := aq.NewHandler(aqCfg, api, obs, log)
		registry.Register(aq.TaskType, wcfg, handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Strings("taskTypes", registry.TaskTypes()))

	// --- Health & Metrics Server ---
	checks := map[string]healthCheck{
		"zeebe":    zeebe.HealthCheck,
		"postgres": pg.Ping,
	}
	if es != nil {
		checks["elasticsearch"] = es.Ping
	}
	if rdb != nil {
		checks["redis"] = rdb.Ping
	}
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newHealthMux(checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	registry.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped")
}
