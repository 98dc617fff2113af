package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
)

const checkTimeout = 2 * time.Second

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check() error {
	if err := c.client.Ping().Err(); err != nil {
		return errors.Wrap(err, "redis ping failed")
	}
	return nil
}

type PostgresChecker struct {
	name string
	pool *pgxpool.Pool
}

func NewPostgresChecker(name string, pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{name: name, pool: pool}
}

func (c *PostgresChecker) Check() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	if err := c.pool.Ping(ctx); err != nil {
		return errors.Wrapf(err, "postgres %s ping failed", c.name)
	}
	return nil
}

// StartupCompleteChecker fails until MarkComplete is called.
type StartupCompleteChecker struct {
	complete atomic.Bool
}

func (c *StartupCompleteChecker) MarkComplete() {
	c.complete.Store(true)
}

func (c *StartupCompleteChecker) Check() error {
	if c.complete.Load() {
		return nil
	}
	return errors.New("startup is not complete")
}
