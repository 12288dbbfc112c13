package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/resflow/forward-runner/internal/config"
	"github.com/resflow/forward-runner/internal/queue"
	"github.com/resflow/forward-runner/internal/queue/memqueue"
	"github.com/resflow/forward-runner/internal/queue/pgqueue"
	"github.com/resflow/forward-runner/internal/queue/redisqueue"
	"github.com/resflow/forward-runner/internal/store"
	"github.com/resflow/forward-runner/internal/store/memstore"
	"github.com/resflow/forward-runner/internal/store/pgstore"
)

// buildStore wires one of the two store.Store backends by name, following
// cfg.StoreBackend ("postgres" | "memory").
func buildStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.StoreDSN), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("connecting store postgres: %w", err)
		}
		return pgstore.New(db), nil
	case "memory", "":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildQueue wires one of the three queue.Queue backends by name, following
// cfg.QueueBackend ("postgres" | "redis" | "memory"). It also returns the
// concrete *memqueue.Queue when that backend was selected, nil otherwise, so
// main can attach the in-process local scheduler that stands in for a real
// LSF/SSH transport.
func buildQueue(cfg config.Config) (queue.Queue, *memqueue.Queue, error) {
	switch cfg.QueueBackend {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.QueueDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting queue postgres: %w", err)
		}
		return pgqueue.New(db), nil, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.QueueDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis dsn: %w", err)
		}
		return redisqueue.New(redis.NewClient(opts), 0), nil, nil
	case "memory", "":
		mq := memqueue.New()
		return mq, mq, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}
