package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/application"
	"github.com/hordelabs/horde/internal/config"
	"github.com/hordelabs/horde/internal/hub"
	"github.com/hordelabs/horde/internal/membership"
	"github.com/hordelabs/horde/internal/observability"
	"github.com/hordelabs/horde/internal/outbox"
	"github.com/hordelabs/horde/internal/repository/postgres"
	"github.com/hordelabs/horde/internal/transport/rest"
	"github.com/hordelabs/horde/internal/tx"
)

func main() {
	cfg := config.Load()

	observability.InitLogger(cfg.ServiceName)
	log := observability.GetLogger(context.Background())
	defer func() { _ = log.Sync() }()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("init tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatal("ping database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	var directory membership.Directory = &membership.Store{DB: db}
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Warn("redis unreachable, running without directory cache or cross-instance relay", zap.Error(err))
		rdb = nil
	} else {
		directory = membership.NewCached(directory, rdb, 5*time.Minute)
	}

	repo := &postgres.Repository{DB: db}
	app := application.New(repo, &tx.Manager{DB: db}, directory, log)
	deliveryHub := hub.New(log)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := &outbox.Worker{
		Repo:      repo,
		Hub:       deliveryHub,
		BatchSize: 100,
		PollDelay: 200 * time.Millisecond,
		Log:       log,
	}
	if rdb != nil {
		router := hub.NewRouter(rdb, cfg.InstanceID, log)
		worker.Router = router
		router.Subscribe(rootCtx, deliveryHub.Dispatch)
	}
	go worker.Start(rootCtx)

	handler := rest.NewRouter(
		rest.NewConversationHandler(app),
		rest.NewMessageHandler(app),
		rest.NewEventsHandler(deliveryHub),
		db,
		cfg,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Close push streams first so Shutdown is not held open by them.
	deliveryHub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}
