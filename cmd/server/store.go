package main

import (
	"context"
	"log/slog"

	"signin/internal/auth"
	"signin/internal/config"
	"signin/internal/platform/cache"
	"signin/internal/platform/database"
	"signin/internal/platform/migrate"
)

func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory user store")
		return auth.NewInMemoryRepository(), nil, nil
	}

	var (
		dialect string
		openDB  = database.NewSQLite
		target  = cfg.DatabasePath
	)
	switch cfg.DataStore {
	case "postgres":
		dialect = database.DialectPostgres
		openDB = database.NewPostgres
		target = cfg.DatabaseURL
	default:
		dialect = database.DialectSQLite
	}

	db, err := openDB(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, dialect, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to user store", "store", cfg.DataStore)
	return auth.NewSQLRepository(db), cleanup, nil
}

// buildMetadataCache returns nil when caching is disabled. Redis is used when
// REDIS_URL is set, process memory otherwise.
func buildMetadataCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.MetadataCache, func(), error) {
	if cfg.MetadataCacheTTL <= 0 {
		return nil, nil, nil
	}

	if cfg.RedisURL == "" {
		logger.Info("caching provider metadata in memory", "ttl", cfg.MetadataCacheTTL.String())
		return auth.NewMemoryMetadataCache(), nil, nil
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("caching provider metadata in redis", "ttl", cfg.MetadataCacheTTL.String())
	return auth.NewRedisMetadataCache(rdb), func() { _ = rdb.Close() }, nil
}
