// cmd/handoff-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"handoff-coordinator/internal/calllog"
	"handoff-coordinator/internal/common/config"
	"handoff-coordinator/internal/common/database"
	"handoff-coordinator/internal/common/logger"
	"handoff-coordinator/internal/common/observability"
	"handoff-coordinator/internal/directory"
	"handoff-coordinator/internal/dispatch"
	"handoff-coordinator/internal/notify"
	"handoff-coordinator/internal/realtime"
	"handoff-coordinator/internal/routing"
	"handoff-coordinator/internal/store"
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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting handoff coordinator...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("handoff-coordinator")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
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

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional: log read side only) ---
	var esClient *database.ElasticsearchClient
	if cfg.CallLog.IndexingOn {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := esClient.EnsureIndex(ctx, cfg.CallLog.SearchIndex); err != nil {
			zapLog.Fatal("elasticsearch index setup failed", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully",
			zap.String("index", cfg.CallLog.SearchIndex))
	}

	// --- Wire the coordination components ---
	feed := realtime.NewFeed(rdb.Client, log)
	st := store.New(pg.DB, feed, log)

	dirTTL := time.Duration(cfg.CallLog.DirectoryTTL) * time.Minute
	dir := directory.New(pg.DB, rdb.Client, dirTTL, log)

	recorder := calllog.NewRecorder(st, dir, esClientOrNil(esClient), cfg.CallLog, log)

	notifier := notify.NewManager(st, rdb.Client, cfg.Notifications, log)
	go notifier.RunSweeper(ctx, time.Minute)

	table := routing.NewTable(cfg.Routing.VendorChannels, log)
	chatClient := dispatch.NewClient(cfg.Chat)
	dispatcher := dispatch.NewDispatcher(table, chatClient, log)

	zapLog.Info("All coordination components initialized")

	// --- API, metrics and pprof endpoint ---
	srv := &api{
		store:      st,
		recorder:   recorder,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     log,
	}
	go func() {
		srv.routes(http.DefaultServeMux)
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("HTTP server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("http server stopped", zap.Error(err))
		}
	}()

	// --- Wait for shutdown signal ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	cancel()
	zapLog.Info("Handoff coordinator stopped")
}

func esClientOrNil(c *database.ElasticsearchClient) *elasticsearch.Client {
	if c == nil {
		return nil
	}
	return c.Client
}
