// Package distlock serializes work on a key across processes. The
// subscriber service takes a lock per email address around the
// duplicate check and the CRM create call.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/subscriber-gateway/internal/pkg/logger"
)

// ErrNotAcquired is returned by WithLock when another holder owns the key.
var ErrNotAcquired = errors.New("distlock: lock held by another process")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Locker hands out a fresh DistLock per key.
type Locker interface {
	Lock(key string) DistLock
}

// LockerFunc adapts a function to the Locker interface.
type LockerFunc func(key string) DistLock

// Lock calls f(key).
func (f LockerFunc) Lock(key string) DistLock { return f(key) }

// NewLocker returns a Locker using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks. Returns nil when
// neither backend is configured.
func NewLocker(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Locker {
	switch {
	case redisClient != nil:
		return LockerFunc(func(key string) DistLock { return NewRedisLock(redisClient, key, ttl) })
	case db != nil:
		return LockerFunc(func(key string) DistLock { return NewPGAdvisoryLock(db, key) })
	default:
		return nil
	}
}

// WithLock runs fn while holding l. It returns ErrNotAcquired without
// running fn when the lock is taken. Locks with a lease (Redis) are renewed
// every third of their TTL until fn returns, so slow work cannot outlive
// the lock. Release errors are ignored; the lock expires (Redis TTL) or
// dies with the session (PG).
func WithLock(ctx context.Context, l DistLock, fn func() error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer l.Release(context.WithoutCancel(ctx))

	if r, ok := l.(leased); ok {
		stop := keepAlive(ctx, r)
		defer stop()
	}
	return fn()
}

// leased is a lock that expires unless renewed.
type leased interface {
	Extend(ctx context.Context, ttl time.Duration) error
	lease() time.Duration
}

// keepAlive renews r until the returned stop func is called. A failed
// renewal ends the loop; the holder finds out when its work completes.
func keepAlive(ctx context.Context, r leased) (stop func()) {
	ttl := r.lease()
	if ttl <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Extend(ctx, ttl); err != nil {
					logger.Warn("distlock: lease renewal failed", "error", err)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock / pg_advisory_unlock are session-scoped, so both
// calls must run on the same connection; the lock pins one *sql.Conn
// between Acquire and Release.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the pinned connection.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Close()
	l.conn = nil
	return err
}
