package store

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/shared"
)

// NewPersister builds the snapshot backend selected by the cache config.
func NewPersister(ctx context.Context, cfg *shared.Config) (Persister, error) {
	switch cfg.Cache.Backend {
	case "", "file":
		return NewFilePersister(cfg.Cache.Snapshot), nil
	case "redis":
		client, err := NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return NewRedisPersister(client, cfg.Redis.Key), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", shared.ErrInvalidConfig, cfg.Cache.Backend)
	}
}

// Open builds a [Store] from application config.
func Open(ctx context.Context, cfg *shared.Config, logger *log.Logger) (*Store, error) {
	persister, err := NewPersister(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := New(Options{
		Persister:   persister,
		AudioDir:    cfg.Cache.AudioDir,
		MaxFiles:    cfg.Cache.MaxFiles,
		URLTTL:      cfg.Cache.URLTTL,
		StreamTTL:   cfg.Cache.StreamTTL,
		GenericTTL:  cfg.Cache.GenericTTL,
		MetadataTTL: cfg.Cache.MetadataTTL,
		Logger:      logger,
	})
	if err != nil {
		persister.Close()
		return nil, err
	}
	return s, nil
}
