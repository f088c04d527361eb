package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	id "census/pkg/domain"
	"census/pkg/platform/sentinel"
	"census/pkg/platform/tx"
)

// DefaultImportIDKey is the Redis key holding the last allocated import id.
const DefaultImportIDKey = "census:import_id"

// MemoryAllocator hands out import ids from a process-local counter.
type MemoryAllocator struct {
	last atomic.Int64
}

func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{}
}

func (a *MemoryAllocator) NextImportID(_ context.Context) (id.ImportID, error) {
	return id.ImportID(a.last.Add(1)), nil
}

func (a *MemoryAllocator) Reset(_ context.Context) error {
	a.last.Store(0)
	return nil
}

func (a *MemoryAllocator) Health(_ context.Context) error {
	return nil
}

// RedisAllocator allocates import ids with INCR so several service instances
// share one strictly increasing sequence.
type RedisAllocator struct {
	client *redis.Client
	key    string
}

// RedisAllocatorOption configures a RedisAllocator.
type RedisAllocatorOption func(*RedisAllocator)

// WithKey overrides the counter key.
func WithKey(key string) RedisAllocatorOption {
	return func(a *RedisAllocator) {
		if key != "" {
			a.key = key
		}
	}
}

// NewRedisAllocator constructs a Redis-backed import id allocator.
func NewRedisAllocator(client *redis.Client, opts ...RedisAllocatorOption) *RedisAllocator {
	a := &RedisAllocator{client: client, key: DefaultImportIDKey}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *RedisAllocator) NextImportID(ctx context.Context) (id.ImportID, error) {
	next, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate import id: %w: %w", sentinel.ErrUnavailable, err)
	}
	return id.ImportID(next), nil
}

func (a *RedisAllocator) Reset(ctx context.Context) error {
	if err := a.client.Del(ctx, a.key).Err(); err != nil {
		return fmt.Errorf("reset import id: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (a *RedisAllocator) Health(ctx context.Context) error {
	if err := a.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// PostgresAllocator allocates import ids from the import_id_seq sequence
// created by PostgresStore.Migrate.
type PostgresAllocator struct {
	db *sql.DB
}

func NewPostgresAllocator(db *sql.DB) *PostgresAllocator {
	return &PostgresAllocator{db: db}
}

func (a *PostgresAllocator) NextImportID(ctx context.Context) (id.ImportID, error) {
	var next int64
	if err := a.db.QueryRowContext(ctx, `SELECT nextval('import_id_seq')`).Scan(&next); err != nil {
		return 0, wrap("allocate import id", err)
	}
	return id.ImportID(next), nil
}

// Reset restarts the sequence, inside the caller's transaction when ctx
// carries one.
func (a *PostgresAllocator) Reset(ctx context.Context) error {
	if _, err := tx.Exec(ctx, a.db).ExecContext(ctx, `ALTER SEQUENCE import_id_seq RESTART WITH 1`); err != nil {
		return wrap("reset import id", err)
	}
	return nil
}

func (a *PostgresAllocator) Health(ctx context.Context) error {
	return wrap("ping postgres", a.db.PingContext(ctx))
}
