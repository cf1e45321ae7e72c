package configstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const snapshotKey = "configstore:settings:latest"

// RedisSnapshotter persists Settings snapshots to Redis so a restarted
// engine resumes with its last-known configuration rather than
// DefaultSettings.
type RedisSnapshotter struct {
	client *goredis.Client
	ttl    time.Duration
}

// RedisSnapshotterConfig configures the Redis connection.
type RedisSnapshotterConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisSnapshotter connects to Redis and pings it to fail fast on a bad
// address rather than on the first Save.
func NewRedisSnapshotter(cfg RedisSnapshotterConfig) (*RedisSnapshotter, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("configstore: redis ping: %w", err)
	}
	log.Printf("[configstore] connected to redis at %s", cfg.Addr)
	return &RedisSnapshotter{client: client, ttl: 0}, nil
}

// Save writes the current Settings as JSON under a fixed key (snapshot
// overwrite, not a history stream — rollback depth is owned by the
// in-memory Store, not Redis).
func (r *RedisSnapshotter) Save(ctx context.Context, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("configstore: marshal settings: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("configstore: redis set: %w", err)
	}
	return nil
}

// Load reads the last-persisted Settings snapshot, if any.
func (r *RedisSnapshotter) Load(ctx context.Context) (Settings, bool, error) {
	data, err := r.client.Get(ctx, snapshotKey).Bytes()
	if err == goredis.Nil {
		return Settings{}, false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("configstore: redis get: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, false, fmt.Errorf("configstore: unmarshal settings: %w", err)
	}
	return s, true, nil
}

// SaveOnUpdate saves the Store's current snapshot to Redis. It subscribes to
// nothing itself: callers invoke it from their own ConfigUpdated handler
// rather than the Store importing Redis directly, keeping the dependency
// one-directional.
func (r *RedisSnapshotter) SaveOnUpdate(ctx context.Context, store *Store) error {
	snap, _ := store.Snapshot()
	return r.Save(ctx, snap)
}
