package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		server.Close()
	})
	return rdb, server
}

func TestRedisOTPStore_saveGetDelete(t *testing.T) {
	rdb, _ := newTestRedis(t)
	s := repository.NewRedisOTPStore(rdb, time.Hour, 30*time.Second)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.Get(ctx, "+919876543210")
	require.ErrorIs(t, err, repository.ErrChallengeNotFound)

	exp := now.Add(5 * time.Minute)
	require.NoError(t, s.Save(ctx, &model.OTPChallenge{
		PhoneNumber: "+919876543210", CodeHash: "$2a$hash", ExpiresAt: &exp,
		WindowStart: &now, LastSentAt: &now, SendCount: 2, VerifyAttempts: 1,
	}))

	got, err := s.Get(ctx, "+919876543210")
	require.NoError(t, err)
	assert.Equal(t, "$2a$hash", got.CodeHash)
	assert.Equal(t, 2, got.SendCount)
	assert.Equal(t, 1, got.VerifyAttempts)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(exp))

	require.NoError(t, s.Delete(ctx, "+919876543210"))
	_, err = s.Get(ctx, "+919876543210")
	assert.ErrorIs(t, err, repository.ErrChallengeNotFound)
}

func TestRedisOTPStore_ttlCoversSendWindow(t *testing.T) {
	rdb, server := newTestRedis(t)
	s := repository.NewRedisOTPStore(rdb, time.Hour, 30*time.Second)
	ctx := context.Background()
	now := time.Now()

	exp := now.Add(5 * time.Minute)
	require.NoError(t, s.Save(ctx, &model.OTPChallenge{
		PhoneNumber: "+919876543210", ExpiresAt: &exp, WindowStart: &now, LastSentAt: &now, SendCount: 1,
	}))

	ttl := server.TTL("otp:challenge:+919876543210")
	assert.Greater(t, ttl, 55*time.Minute, "record must outlive the code to keep the hourly count")
	assert.LessOrEqual(t, ttl, time.Hour)

	server.FastForward(61 * time.Minute)
	_, err := s.Get(ctx, "+919876543210")
	assert.ErrorIs(t, err, repository.ErrChallengeNotFound)
}

func TestRedisLocker_exclusive(t *testing.T) {
	rdb, server := newTestRedis(t)
	l := repository.NewRedisLocker(rdb, 5*time.Second, zap.NewNop())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "+919876543210")
	require.NoError(t, err)
	assert.True(t, server.Exists("lock:otp:+919876543210"))

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "+919876543210")
	require.ErrorIs(t, err, repository.ErrLockNotAcquired)

	unlock()
	assert.False(t, server.Exists("lock:otp:+919876543210"))

	unlock2, err := l.Lock(ctx, "+919876543210")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_releaseDoesNotStealForeignLock(t *testing.T) {
	rdb, server := newTestRedis(t)
	l := repository.NewRedisLocker(rdb, time.Second, zap.NewNop())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	// Lease runs out and someone else takes the key.
	server.FastForward(2 * time.Second)
	require.NoError(t, server.Set("lock:otp:k", "other-holder"))

	unlock()
	got, err := server.Get("lock:otp:k")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", got)
}
