package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Lee_Social/internal/config"
	"Lee_Social/internal/pkg"
	redisrepo "Lee_Social/internal/repository/redis"
	"Lee_Social/internal/repository/sqlstore"
	"Lee_Social/internal/router"
	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := pkg.InitTracer(ctx, cfg.OtelEndpoint, "lee-social", cfg.Env)
	if err != nil {
		logger.Error("init tracer", "error", err)
	} else if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	db, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	// 自动建表（开发阶段 OK）
	if cfg.DBAutoMigrate {
		if err := sqlstore.AutoMigrate(db); err != nil {
			logger.Error("auto migrate", "error", err)
			os.Exit(1)
		}
	}

	ids, err := pkg.NewSnowflake(cfg.NodeID)
	if err != nil {
		logger.Error("init id source", "error", err)
		os.Exit(1)
	}

	exec := sqlstore.NewExecutor(db,
		sqlstore.WithMaxRetries(cfg.TxMaxRetries),
		sqlstore.WithLogger(logger),
	)
	relations := service.NewRelationService(db, exec, ids, logger)

	// 连接redis，失败时推荐作者名单直接读库
	loader := service.DBCuratedLoader(db)
	if cfg.RedisAddr != "" {
		rdb, err := redisrepo.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, curated authors read from database", "error", err)
		} else {
			defer func() { _ = rdb.Close() }()
			loader = service.SharedCuratedLoader(
				redisrepo.NewCuratedCacheRepository(rdb, cfg.CuratedTTL),
				&redisrepo.DistLock{RDB: rdb},
				loader,
				logger,
			)
		}
	}
	curated := service.NewCuratedAuthors(loader, cfg.CuratedTTL, service.WithCuratedLogger(logger))
	feed := service.NewFeedService(db, relations, curated, cfg.FeedPageSize, logger)

	sender, closeSender, err := newSender(cfg, logger)
	if err != nil {
		logger.Error("init outbox sink", "sink", cfg.OutboxSink, "error", err)
		os.Exit(1)
	}
	defer closeSender()

	go service.NewOutboxRelayer(db, sender, cfg.OutboxInterval, logger).Run(ctx)
	go service.NewFollowCountReconciler(db, cfg.ReconcileInterval, logger).Run(ctx)

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: router.InitRouter(router.Deps{
			Relations:    relations,
			Feed:         feed,
			AccessSecret: []byte(cfg.AccessSecret),
			Logger:       logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
}

func newLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if env == "local" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// newSender 按 OUTBOX_SINK 选择投递端，返回的 close 在退出时调用
func newSender(cfg config.Config, logger *slog.Logger) (service.Sender, func(), error) {
	switch cfg.OutboxSink {
	case "kafka":
		p := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		return service.KafkaSender(p), func() { _ = p.Close() }, nil
	case "nats":
		p, err := pkg.NewNatsPublisher(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			return nil, nil, err
		}
		return service.NatsSender(p), func() { _ = p.Close() }, nil
	default:
		return service.LogSender(logger), func() {}, nil
	}
}
