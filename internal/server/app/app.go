// Package app wires configuration, database, blob storage, thumbnail cache
// and services into one App used by the operator commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophshare/internal/cryptox"
	"github.com/dmitrijs2005/gophshare/internal/dbx"
	"github.com/dmitrijs2005/gophshare/internal/logging"
	"github.com/dmitrijs2005/gophshare/internal/server/config"
	"github.com/dmitrijs2005/gophshare/internal/server/keydist"
	"github.com/dmitrijs2005/gophshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophshare/internal/server/services"
	"github.com/dmitrijs2005/gophshare/internal/server/storage"
	"github.com/dmitrijs2005/gophshare/internal/server/thumbnails"
)

type App struct {
	Config     *config.Config
	Logger     logging.Logger
	DB         *sql.DB
	Repos      repomanager.RepositoryManager
	Storage    storage.Storage
	Files      *services.FileService
	Thumbnails *thumbnails.Service

	closers []func() error
}

// openDB is a seam for tests.
var openDB = dbx.Open

// bucketEnsurer is implemented by object store backends that can create
// their bucket.
type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.New(logOut, cfg.LogFormat, cfg.LogLevel)

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Repos:   repomanager.NewPostgresRepositoryManager(),
		closers: []func() error{db.Close},
	}

	a.Storage, err = newStorage(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	backend, err := a.newThumbnailBackend(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	engine := cryptox.New(cfg.FallbackPassphrase)
	var (
		cache *thumbnails.Cache
		opts  []services.Option
	)
	if backend != nil {
		cache = thumbnails.NewCache(backend, engine, cfg.ThumbnailTTL, logger)
		opts = append(opts, services.WithThumbnails(cache))
	}

	a.Files = services.NewFileService(db, a.Repos, a.Storage, engine, keydist.New(cfg.BaseURL), logger, cfg, opts...)
	a.Thumbnails = thumbnails.NewService(a.Files, cache, thumbnails.NewGenerator(), logger)
	return a, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	objCfg := storage.ObjectStoreConfig{
		Endpoint:  cfg.S3BaseEndpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3RootUser,
		SecretKey: cfg.S3RootPassword,
		UseSSL:    cfg.S3UseSSL,
	}

	switch cfg.StorageBackend {
	case config.StorageFS:
		return storage.NewFSStorage(cfg.StorageRoot)
	case config.StorageS3:
		return storage.NewS3Storage(ctx, objCfg)
	case config.StorageMinio:
		return storage.NewMinioStorage(objCfg)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// newThumbnailBackend returns nil when thumbnail caching is disabled.
func (a *App) newThumbnailBackend(ctx context.Context) (thumbnails.Backend, error) {
	switch a.Config.ThumbnailCache {
	case config.ThumbnailCacheNone:
		return nil, nil
	case config.ThumbnailCacheMemory:
		return thumbnails.NewMemoryBackend(), nil
	case config.ThumbnailCacheRedis:
		r := thumbnails.NewRedisBackend(thumbnails.RedisConfig{
			Addr:     a.Config.RedisAddr,
			DB:       a.Config.RedisDB,
			Password: a.Config.RedisPassword,
		}, a.Logger)
		a.closers = append(a.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown thumbnail cache %q", a.Config.ThumbnailCache)
}

// Migrate applies database migrations and creates the storage bucket when
// the backend supports it.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.Repos.RunMigrations(ctx, a.DB); err != nil {
		return err
	}
	if b, ok := a.Storage.(bucketEnsurer); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			return err
		}
	}
	a.Logger.Info(ctx, "migrations applied", "storage", a.Config.StorageBackend)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
