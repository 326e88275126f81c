// Package main runs the DocDesk reference backend: the REST API used by the
// docdesk CLI plus, when no Redis queue is configured, in-process document
// post-processing.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/api"
	"github.com/dharsanguruparan/DocDesk/internal/auth"
	"github.com/dharsanguruparan/DocDesk/internal/config"
	"github.com/dharsanguruparan/DocDesk/internal/database"
	"github.com/dharsanguruparan/DocDesk/internal/logger"
	"github.com/dharsanguruparan/DocDesk/internal/processing"
	"github.com/dharsanguruparan/DocDesk/internal/queue"
	"github.com/dharsanguruparan/DocDesk/internal/repository"
	"github.com/dharsanguruparan/DocDesk/internal/s3storage"
	"github.com/dharsanguruparan/DocDesk/internal/signing"
	"github.com/dharsanguruparan/DocDesk/internal/storage"
	"github.com/dharsanguruparan/DocDesk/internal/worker"
)

// documentStore is what both the API and the in-process worker need from the
// document records.
type documentStore interface {
	api.Documents
	worker.Documents
}

// backend is the set of stores chosen from the configuration.
type backend struct {
	catalog api.Catalog
	docs    documentStore
	objects api.ObjectStore
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	b, err := openBackend(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer b.close()

	var dispatcher api.Dispatcher
	if cfg.UsesQueue() {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		dispatcher = queue.NewEnqueuer(client)
		zlog.Info("processing through redis queue", zap.String("redis", cfg.RedisAddr))
	} else {
		pool := processing.New(worker.NewProcessor(b.docs, b.objects, zlog), cfg.ProcessingPool, zlog)
		poolCtx, cancelPool := context.WithCancel(ctx)
		pool.Start(poolCtx)
		defer func() {
			cancelPool()
			pool.Wait()
		}()
		dispatcher = pool
		zlog.Info("processing in process", zap.Int("workers", cfg.ProcessingPool))
	}

	srv := api.New(api.Options{
		Address:      cfg.Address,
		MaxFileSize:  cfg.MaxFileSize,
		SignedURLTTL: cfg.SignedURLTTL,
	}, b.catalog, b.docs, b.objects, dispatcher,
		auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL),
		signing.NewSigner(cfg.SigningSecret),
		zlog)
	return srv.Run(ctx)
}

// openBackend picks Postgres or memory for records and MinIO or memory for
// PDF bytes, and seeds the catalog and the admin account.
func openBackend(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*backend, error) {
	b := &backend{}
	if cfg.UsesPostgres() {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			b.close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		catalog := repository.NewCatalogRepository(pool)
		if err := catalog.SeedDocumentTypes(ctx, storage.DefaultDocumentTypes); err != nil {
			b.close()
			return nil, fmt.Errorf("seed document types: %w", err)
		}
		if err := storage.SeedAdmin(ctx, catalog, cfg.AdminLogin, cfg.AdminPassword, cfg.AdminPermissions); err != nil {
			b.close()
			return nil, err
		}
		b.catalog = catalog
		b.docs = repository.NewDocumentRepository(pool)
		zlog.Info("using postgres")
	} else {
		store := storage.NewMemoryStore()
		storage.SeedDemo(store)
		if err := storage.SeedAdmin(ctx, store, cfg.AdminLogin, cfg.AdminPassword, cfg.AdminPermissions); err != nil {
			return nil, err
		}
		b.catalog = store
		b.docs = store
		zlog.Warn("DATABASE_URL not set, records are kept in memory")
	}

	if cfg.UsesObjectStorage() {
		objects, err := s3storage.New(cfg)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		b.objects = objects
	} else {
		b.objects = storage.NewMemoryBlobs()
		zlog.Warn("S3_ENDPOINT not set, files are kept in memory")
	}
	return b, nil
}
