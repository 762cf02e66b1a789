package cli

import (
	"context"
	"fmt"

	"branchqueue/internal/config"
	"branchqueue/internal/logger"
	"branchqueue/internal/queue"
	"branchqueue/internal/snapshot"
	"branchqueue/internal/storage"
	"branchqueue/internal/telemetry"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is the wiring shared by the server and the one-shot commands.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	rdb      *redis.Client
	service  *queue.Service
	provider *snapshot.Provider
	closers  []func(context.Context) error
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	err = logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger.Get(), nil
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.OTel.Enabled,
		ServiceName:   cfg.OTel.ServiceName,
		Environment:   cfg.App.Environment,
		CollectorAddr: cfg.OTel.CollectorAddr,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	a.db, err = storage.ConnectDatabase(cfg.Database, log)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if err := storage.Migrate(a.db); err != nil {
		a.close(ctx)
		return nil, err
	}

	if cfg.Redis.Enabled {
		a.rdb, err = storage.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return a.rdb.Close() })
	}

	loc, err := cfg.Queue.TimeLocation()
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	var cache snapshot.Cache
	switch cfg.Cache.Backend {
	case "redis":
		cache = snapshot.NewRedisCache(a.rdb, cfg.Cache.TTL, log)
	default:
		cache = snapshot.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	store := queue.NewStore(a.db, queue.Clock{Location: loc})
	a.provider = snapshot.NewProvider(cache, store, log)
	a.service = queue.NewService(store, a.provider, cfg.Queue.AvgServiceMinutes, log)
	return a, nil
}

// close runs the registered closers in reverse order.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn("shutdown step failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logger.Sync()
}
