// Package storage holds the key-value persistence providers the task store
// writes its JSON blobs through.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Provider is a string key-value store. Get reports ok=false for an absent key.
type Provider interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

type Options struct {
	Backend     Backend
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
}

// Open builds the provider named by opts.Backend. The returned close func is
// never nil.
func Open(ctx context.Context, opts Options) (Provider, func() error, error) {
	noop := func() error { return nil }

	switch Backend(strings.ToLower(string(opts.Backend))) {
	case BackendMemory:
		return NewMemory(), noop, nil

	case BackendSQLite:
		dsn, err := SQLiteFileDSN(opts.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("sqlite dsn: %w", err)
		}
		db, err := NewSQLite(dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.ApplyMigrations(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("migrate sqlite: %w", err)
		}
		return db, db.Close, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("ping redis %s: %w", opts.RedisAddr, err)
		}
		return NewRedis(client, opts.RedisPrefix), client.Close, nil
	}

	return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}
