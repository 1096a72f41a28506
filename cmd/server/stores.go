package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/donationcore/internal/config"
	"github.com/jmerrifield20/donationcore/internal/donation/repository"
	"github.com/jmerrifield20/donationcore/internal/donation/service"
	"github.com/jmerrifield20/donationcore/internal/health"
	"github.com/jmerrifield20/donationcore/internal/keylock"
	"github.com/jmerrifield20/donationcore/internal/phone"
	"github.com/jmerrifield20/donationcore/internal/security"
	"github.com/jmerrifield20/donationcore/internal/users"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// stores bundles the storage backends selected by store.driver and
// store.receipt_driver.
type stores struct {
	otp      service.ChallengeStore
	receipts service.ReceiptStore
	users    users.Store
	locker   service.Locker
	probes   map[string]health.Probe
	closers  []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	st := &stores{locker: keylock.New(), probes: make(map[string]health.Probe)}

	var db *pgxpool.Pool
	if cfg.UsesPostgres() {
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		st.closers = append(st.closers, func() error { pool.Close(); return nil })
		if err := pool.Ping(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		st.probes["postgres"] = pool.Ping
		db = pool
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		st.otp = repository.NewPostgresOTPStore(db)
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		st.closers = append(st.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			st.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Store.RedisAddr))
		st.probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		st.otp = repository.NewRedisOTPStore(client, service.SendWindow, cfg.OTP.ResendCooldown)
		// The lease must outlast a slow SMS provider plus the store round trips.
		st.locker = repository.NewRedisLocker(client, cfg.OTP.DeliveryTimeout+15*time.Second, logger)
	default:
		st.otp = repository.NewMemoryOTPStore()
	}

	switch cfg.Store.ReceiptDriver {
	case config.DriverPostgres:
		st.receipts = repository.NewPostgresReceiptStore(db)
	case config.DriverBolt:
		bs, err := repository.OpenBoltReceiptStore(cfg.Store.BoltPath)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, bs.Close)
		logger.Info("bolt receipt store opened", zap.String("path", cfg.Store.BoltPath))
		st.receipts = bs
	default:
		st.receipts = repository.NewMemoryReceiptStore()
	}

	if db != nil {
		st.users = users.NewUserRepository(db)
	} else {
		mem := users.NewMemoryRepository()
		if err := seedUsers(ctx, mem, security.NewHasher(cfg.Auth.PasswordHashCost), cfg.Users); err != nil {
			st.Close()
			return nil, err
		}
		logger.Info("in-memory user directory", zap.Int("accounts", len(cfg.Users)))
		st.users = mem
	}

	logger.Info("stores ready",
		zap.String("otp", cfg.Store.Driver),
		zap.String("receipts", cfg.Store.ReceiptDriver),
	)
	return st, nil
}

func seedUsers(ctx context.Context, repo *users.MemoryRepository, hasher *security.Hasher, seed []config.SeedUser) error {
	for _, s := range seed {
		u := &users.User{
			Name:     s.Name,
			Email:    users.NormalizeEmail(s.Email),
			UserType: users.UserType(s.UserType),
		}
		if s.PhoneNumber != "" {
			num, err := phone.Normalize(s.PhoneNumber)
			if err != nil {
				return fmt.Errorf("seed user %s: %w", s.Email, err)
			}
			u.PhoneNumber = num
		}
		if s.Password != "" {
			hash, err := hasher.Hash(s.Password)
			if err != nil {
				return fmt.Errorf("seed user %s: %w", s.Email, err)
			}
			u.PasswordHash = hash
		}
		err := repo.Create(ctx, u)
		if err != nil && !errors.Is(err, users.ErrDuplicatePhone) && !errors.Is(err, users.ErrDuplicateEmail) {
			return fmt.Errorf("seed user %s: %w", s.Email, err)
		}
	}
	return nil
}
