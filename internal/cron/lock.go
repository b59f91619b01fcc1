package cron

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/angelmondragon/settlement-backend/pkg/redis"
)

// Lock coordinates exclusive cron cycles across replicas.
type Lock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// RedisLock holds one redis lock scope for the worker's lifetime.
type RedisLock struct {
	locker pkgredis.Locker
	scope  string
}

// NewRedisLock scopes a redis locker to the cron worker of one environment.
func NewRedisLock(locker pkgredis.Locker, env string) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required for cron lock")
	}
	if env == "" {
		env = "local"
	}
	return &RedisLock{locker: locker, scope: "cron-worker:" + env}, nil
}

// Acquire owns the lock for at most ttl. The release func only deletes the key
// while this process still owns it.
func (l *RedisLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	return l.locker.Acquire(ctx, l.scope, ttl)
}
