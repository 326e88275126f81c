package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/config"
	"github.com/dharsanguruparan/DocDesk/internal/database"
	"github.com/dharsanguruparan/DocDesk/internal/logger"
	"github.com/dharsanguruparan/DocDesk/internal/repository"
	"github.com/dharsanguruparan/DocDesk/internal/s3storage"
	"github.com/dharsanguruparan/DocDesk/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if !cfg.UsesQueue() || !cfg.UsesPostgres() || !cfg.UsesObjectStorage() {
		zlog.Fatal("worker needs REDIS_ADDR, DATABASE_URL and S3_ENDPOINT")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		zlog.Fatal("ensure schema", zap.Error(err))
	}
	repo := repository.NewDocumentRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		zlog.Fatal("init storage", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		zlog.Fatal("ensure bucket", zap.Error(err))
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ProcessingPool,
		Logger:      zlog.Named("asynq").Sugar(),
	})
	processor := worker.NewProcessor(repo, store, zlog)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	zlog.Info("worker started", zap.Int("concurrency", cfg.ProcessingPool))
	if err := server.Run(processor.Handler()); err != nil {
		zlog.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
