package distlock

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "subscriber:create:tom@test.com", 10*time.Second)
	second := NewRedisLock(client, "subscriber:create:tom@test.com", 10*time.Second)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:subscriber:create:tom@test.com"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:subscriber:create:tom@test.com"), "non-owner release leaves the lock alone")

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:subscriber:create:tom@test.com"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "k", time.Second)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewRedisLock(client, "k", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Error(t, lock.Extend(ctx, time.Second), "expired lock cannot be extended")
}

func TestRedisLock_Extend(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "k", time.Second)
	_, err := lock.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, lock.Extend(ctx, time.Minute))
	assert.Greater(t, mr.TTL("lock:k"), 30*time.Second)
}

func TestWithLock(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	locker := NewLocker(client, nil, 10*time.Second)
	require.NotNil(t, locker)

	var ran bool
	err := WithLock(ctx, locker.Lock("a"), func() error {
		ran = true
		err := WithLock(ctx, locker.Lock("a"), func() error { return nil })
		assert.ErrorIs(t, err, ErrNotAcquired)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, WithLock(ctx, locker.Lock("a"), func() error { return boom }), boom,
		"lock released after the first call")
}

func TestWithLock_RenewsLeaseWhileHeld(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	const ttl = 300 * time.Millisecond

	err := WithLock(ctx, NewRedisLock(client, "slow", ttl), func() error {
		// Advance Redis time past the TTL in steps; each step is followed
		// by a renewal that restores the full lease.
		for i := 0; i < 4; i++ {
			mr.FastForward(200 * time.Millisecond)
			require.True(t, mr.Exists("lock:slow"), "step %d", i)
			require.Eventually(t, func() bool {
				return mr.TTL("lock:slow") > 200*time.Millisecond
			}, time.Second, 10*time.Millisecond)
		}

		ok, err := NewRedisLock(client, "slow", ttl).Acquire(ctx)
		require.NoError(t, err)
		assert.False(t, ok, "lease still held after 800ms of Redis time")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:slow"), "released after fn returns")
}

// countingLease records renewals.
type countingLease struct {
	ttl     time.Duration
	renewed atomic.Int32
	fail    bool
}

func (c *countingLease) Extend(context.Context, time.Duration) error {
	c.renewed.Add(1)
	if c.fail {
		return errors.New("lost")
	}
	return nil
}

func (c *countingLease) lease() time.Duration { return c.ttl }

func TestKeepAlive_StopEndsRenewals(t *testing.T) {
	l := &countingLease{ttl: 30 * time.Millisecond}

	stop := keepAlive(context.Background(), l)
	require.Eventually(t, func() bool { return l.renewed.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()

	n := l.renewed.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, l.renewed.Load())
}

func TestKeepAlive_FailedRenewalEndsLoop(t *testing.T) {
	l := &countingLease{ttl: 30 * time.Millisecond, fail: true}

	stop := keepAlive(context.Background(), l)
	defer stop()

	require.Eventually(t, func() bool { return l.renewed.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), l.renewed.Load())
}

func TestKeepAlive_NoTTLNoLoop(t *testing.T) {
	l := &countingLease{}
	keepAlive(context.Background(), l)()
	assert.Zero(t, l.renewed.Load())
}

func TestWithLock_RedisDown(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	err := WithLock(context.Background(), NewRedisLock(client, "k", time.Second), func() error {
		t.Fatal("must not run")
		return nil
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestNewLocker_NoBackend(t *testing.T) {
	assert.Nil(t, NewLocker(nil, nil, time.Second))
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	lock := NewPGAdvisoryLock(db, "subscriber:create:tom@test.com")
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	require.NoError(t, lock.Release(context.Background()), "second release is a no-op")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Held(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	lock := NewPGAdvisoryLock(db, "k")
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_SameKeySameID(t *testing.T) {
	assert.Equal(t, NewPGAdvisoryLock(nil, "x").lockID, NewPGAdvisoryLock(nil, "x").lockID)
	assert.NotEqual(t, NewPGAdvisoryLock(nil, "x").lockID, NewPGAdvisoryLock(nil, "y").lockID)
}
