package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "otp:challenge:"

// RedisOTPStore keeps each challenge as a JSON string with a TTL that covers
// both the code expiry and the hourly send window, so stale records expire
// on their own.
type RedisOTPStore struct {
	client   redis.UniversalClient
	window   time.Duration
	cooldown time.Duration
	now      func() time.Time
}

// NewRedisOTPStore creates a RedisOTPStore. window and cooldown must match
// the values the OTP manager enforces.
func NewRedisOTPStore(client redis.UniversalClient, window, cooldown time.Duration) *RedisOTPStore {
	return &RedisOTPStore{client: client, window: window, cooldown: cooldown, now: time.Now}
}

// Get returns the challenge for phoneNumber or ErrChallengeNotFound.
func (r *RedisOTPStore) Get(ctx context.Context, phoneNumber string) (*model.OTPChallenge, error) {
	raw, err := r.client.Get(ctx, otpKeyPrefix+phoneNumber).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get otp challenge: %w", err)
	}
	var ch model.OTPChallenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode otp challenge: %w", err)
	}
	return &ch, nil
}

// Save writes the challenge and refreshes its TTL.
func (r *RedisOTPStore) Save(ctx context.Context, ch *model.OTPChallenge) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode otp challenge: %w", err)
	}
	ttl := ch.RetainUntil(r.window, r.cooldown).Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := r.client.Set(ctx, otpKeyPrefix+ch.PhoneNumber, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

// Delete removes the challenge for phoneNumber.
func (r *RedisOTPStore) Delete(ctx context.Context, phoneNumber string) error {
	if err := r.client.Del(ctx, otpKeyPrefix+phoneNumber).Err(); err != nil {
		return fmt.Errorf("delete otp challenge: %w", err)
	}
	return nil
}

// DeleteStale is a no-op; key TTLs already drop stale challenges.
func (r *RedisOTPStore) DeleteStale(context.Context, time.Time, time.Time) (int64, error) {
	return 0, nil
}
