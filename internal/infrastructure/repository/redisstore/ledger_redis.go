// Package redisstore keeps the ledger snapshot under a single Redis key.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sim-daas/Midnight-Blues/internal/ledger"
)

// Connect accepts either a redis:// URL or a plain host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type LedgerRedis struct {
	client redis.UniversalClient
	key    string
	log    *slog.Logger
}

func NewLedgerRedis(client redis.UniversalClient, key string, log *slog.Logger) *LedgerRedis {
	return &LedgerRedis{
		client: client,
		key:    key,
		log:    log.With(slog.String("component", "ledger_redis")),
	}
}

func (r *LedgerRedis) Load(ctx context.Context) (ledger.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Info("ledger key not found, starting empty", slog.String("key", r.key))
		return ledger.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}

	var snapshot ledger.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return snapshot, nil
}

func (r *LedgerRedis) Save(ctx context.Context, snapshot ledger.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}
