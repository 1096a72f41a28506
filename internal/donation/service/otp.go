package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/model"
	"github.com/jmerrifield20/donationcore/internal/donation/repository"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/jmerrifield20/donationcore/internal/phone"
	"github.com/jmerrifield20/donationcore/internal/users"
	"go.uber.org/zap"
)

// SendWindow is the rolling period that MaxSendPerHour applies to.
const SendWindow = time.Hour

// ChallengeStore is the storage interface required by OTPManager.
// Every repository OTP store satisfies it.
type ChallengeStore interface {
	Get(ctx context.Context, phoneNumber string) (*model.OTPChallenge, error)
	Save(ctx context.Context, ch *model.OTPChallenge) error
	Delete(ctx context.Context, phoneNumber string) error
	DeleteStale(ctx context.Context, expiredBefore, windowBefore time.Time) (int64, error)
}

// secretHasher is satisfied by *security.Hasher.
type secretHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// UserDirectory resolves the account that owns a phone number.
type UserDirectory interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*users.User, error)
}

// Notifier delivers content to a destination out of band. It fails on
// transport errors.
type Notifier interface {
	Send(ctx context.Context, destination, content string) error
}

// Locker serializes work per key. *keylock.Map and
// *repository.RedisLocker satisfy it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// OTPConfig holds the issuance and verification limits. Zero fields take defaults.
type OTPConfig struct {
	Expiry            time.Duration // default 5m
	ResendCooldown    time.Duration // default 30s
	MaxSendPerHour    int           // default 5
	MaxVerifyAttempts int           // default 5
	DeliveryTimeout   time.Duration // default 45s
}

func (c OTPConfig) withDefaults() OTPConfig {
	if c.Expiry <= 0 {
		c.Expiry = 5 * time.Minute
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = 30 * time.Second
	}
	if c.MaxSendPerHour <= 0 {
		c.MaxSendPerHour = 5
	}
	if c.MaxVerifyAttempts <= 0 {
		c.MaxVerifyAttempts = 5
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 45 * time.Second
	}
	return c
}

// VerifiedOTP is the result of a successful verification. User is nil when
// no user directory is configured.
type VerifiedOTP struct {
	PhoneNumber string
	User        *users.User
}

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// OTPManager issues and verifies one-time login codes sent by SMS.
type OTPManager struct {
	store    ChallengeStore
	hasher   secretHasher
	notifier Notifier
	locker   Locker
	users    UserDirectory
	cfg      OTPConfig
	now      func() time.Time
	logger   *zap.Logger
}

// NewOTPManager creates an OTPManager.
func NewOTPManager(store ChallengeStore, hasher secretHasher, notifier Notifier, locker Locker, cfg OTPConfig, logger *zap.Logger) *OTPManager {
	return &OTPManager{
		store:    store,
		hasher:   hasher,
		notifier: notifier,
		locker:   locker,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		logger:   logger,
	}
}

// SetUserDirectory makes Send and Verify reject phone numbers with no account.
func (m *OTPManager) SetUserDirectory(dir UserDirectory) {
	m.users = dir
}

// SetClock replaces the time source. Intended for tests.
func (m *OTPManager) SetClock(now func() time.Time) {
	m.now = now
}

// Config returns the effective limits.
func (m *OTPManager) Config() OTPConfig {
	return m.cfg
}

// Send issues a fresh code to phoneNumber. Nothing is persisted unless the
// notifier accepted the code, so a failed delivery neither consumes the
// send budget nor replaces a still-valid earlier code.
func (m *OTPManager) Send(ctx context.Context, rawPhone string) (*model.OTPSent, error) {
	num, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, fault.New(fault.CodeInvalidInput, err.Error())
	}
	if _, err := m.lookupUser(ctx, num); err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(ctx, num)
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "could not acquire challenge lock", err)
	}
	defer unlock()

	ch, err := m.store.Get(ctx, num)
	switch {
	case errors.Is(err, repository.ErrChallengeNotFound):
		ch = &model.OTPChallenge{PhoneNumber: num}
	case err != nil:
		return nil, fault.Wrap(fault.CodeInternal, "failed to load challenge", err)
	}

	now := m.now()

	if ch.WindowStart == nil || now.After(ch.WindowStart.Add(SendWindow)) {
		ws := now
		ch.WindowStart = &ws
		ch.SendCount = 0
	}

	if ch.LastSentAt != nil {
		if next := ch.LastSentAt.Add(m.cfg.ResendCooldown); now.Before(next) {
			wait := waitSeconds(next.Sub(now))
			return nil, fault.RateLimited(wait,
				fmt.Sprintf("Please wait %d seconds before requesting another OTP", wait))
		}
	}

	if ch.SendCount >= m.cfg.MaxSendPerHour {
		wait := waitSeconds(ch.WindowStart.Add(SendWindow).Sub(now))
		return nil, fault.RateLimited(wait, "OTP send limit exceeded. Try again after some time")
	}

	code, err := generateCode()
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "failed to generate code", err)
	}
	codeHash, err := m.hasher.Hash(code)
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "failed to hash code", err)
	}
	expiresAt := now.Add(m.cfg.Expiry)

	// The send is not abandoned when the caller goes away; an SMS that has
	// left cannot be recalled, so the record must follow it.
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.DeliveryTimeout)
	err = m.notifier.Send(dctx, num, "Your OTP is "+code)
	cancel()
	if err != nil {
		m.logger.Warn("otp delivery failed",
			zap.String("phone", phone.Mask(num)),
			zap.Error(err),
		)
		return nil, fault.Wrap(fault.CodeDeliveryFailed, "Failed to send OTP. Please try again", err)
	}

	sentAt := now
	ch.CodeHash = codeHash
	ch.ExpiresAt = &expiresAt
	ch.Verified = false
	ch.VerifyAttempts = 0
	ch.SendCount++
	ch.LastSentAt = &sentAt

	if err := m.store.Save(context.WithoutCancel(ctx), ch); err != nil {
		m.logger.Error("otp delivered but not recorded",
			zap.String("phone", phone.Mask(num)),
			zap.Error(err),
		)
		return nil, fault.Wrap(fault.CodeInternal, "failed to record challenge", err)
	}

	m.logger.Info("otp sent",
		zap.String("phone", phone.Mask(num)),
		zap.Int("send_count", ch.SendCount),
		zap.Time("expires_at", expiresAt),
	)

	return &model.OTPSent{
		PhoneNumber:              num,
		ExpiryTime:               expiresAt,
		ResendAvailableInSeconds: int(m.cfg.ResendCooldown / time.Second),
	}, nil
}

// Verify consumes the pending code for phoneNumber. A code verifies at most
// once: on success the challenge is deleted.
func (m *OTPManager) Verify(ctx context.Context, rawPhone, code string) (*VerifiedOTP, error) {
	num, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, fault.New(fault.CodeInvalidInput, err.Error())
	}
	if !sixDigits.MatchString(code) {
		return nil, fault.New(fault.CodeInvalidInput, "otp must be a 6-digit code")
	}
	user, err := m.lookupUser(ctx, num)
	if err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(ctx, num)
	if err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "could not acquire challenge lock", err)
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)

	ch, err := m.store.Get(ctx, num)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, fault.New(fault.CodeNotFound, "No pending OTP for this phone number. Please request a new OTP")
		}
		return nil, fault.Wrap(fault.CodeInternal, "failed to load challenge", err)
	}
	if ch.Verified || ch.CodeHash == "" {
		// Consumed by an earlier verify whose delete did not land.
		return nil, fault.New(fault.CodeNotFound, "No pending OTP for this phone number. Please request a new OTP")
	}

	now := m.now()

	if ch.ExpiresAt == nil || !now.Before(*ch.ExpiresAt) {
		if err := m.store.Delete(ctx, num); err != nil {
			return nil, fault.Wrap(fault.CodeInternal, "failed to clear expired challenge", err)
		}
		return nil, fault.New(fault.CodeExpired, "OTP expired. Please request a new OTP")
	}

	if ch.VerifyAttempts >= m.cfg.MaxVerifyAttempts {
		if err := m.store.Delete(ctx, num); err != nil {
			return nil, fault.Wrap(fault.CodeInternal, "failed to clear exhausted challenge", err)
		}
		return nil, fault.New(fault.CodeTooManyAttempts, "Too many invalid OTP attempts. Please request a new OTP")
	}

	if !m.hasher.Verify(code, ch.CodeHash) {
		ch.VerifyAttempts++
		if ch.VerifyAttempts >= m.cfg.MaxVerifyAttempts {
			if err := m.store.Delete(ctx, num); err != nil {
				return nil, fault.Wrap(fault.CodeInternal, "failed to clear exhausted challenge", err)
			}
			m.logger.Info("otp attempts exhausted", zap.String("phone", phone.Mask(num)))
			return nil, fault.New(fault.CodeInvalidCode, "Invalid OTP. Attempt limit reached; please request a new OTP")
		}
		if err := m.store.Save(ctx, ch); err != nil {
			return nil, fault.Wrap(fault.CodeInternal, "failed to record attempt", err)
		}
		return nil, fault.New(fault.CodeInvalidCode, "Invalid OTP")
	}

	ch.Verified = true
	ch.CodeHash = ""
	if err := m.store.Save(ctx, ch); err != nil {
		return nil, fault.Wrap(fault.CodeInternal, "failed to mark challenge verified", err)
	}
	if err := m.store.Delete(ctx, num); err != nil {
		// The stored record is already marked consumed, so it cannot verify again.
		m.logger.Warn("delete verified otp challenge", zap.String("phone", phone.Mask(num)), zap.Error(err))
	}

	m.logger.Info("otp verified", zap.String("phone", phone.Mask(num)))
	return &VerifiedOTP{PhoneNumber: num, User: user}, nil
}

// DeleteStale removes challenges that have expired and whose send window
// has closed. Safe to call from a background goroutine.
func (m *OTPManager) DeleteStale(ctx context.Context) (int64, error) {
	now := m.now()
	retain := SendWindow
	if m.cfg.ResendCooldown > retain {
		retain = m.cfg.ResendCooldown
	}
	n, err := m.store.DeleteStale(ctx, now, now.Add(-retain))
	if err != nil {
		return 0, fmt.Errorf("delete stale challenges: %w", err)
	}
	if n > 0 {
		m.logger.Info("pruned stale OTP challenges", zap.Int64("count", n))
	}
	return n, nil
}

func (m *OTPManager) lookupUser(ctx context.Context, num string) (*users.User, error) {
	if m.users == nil {
		return nil, nil
	}
	u, err := m.users.GetByPhone(ctx, num)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, fault.New(fault.CodeNotFound, "No account found for this phone number")
		}
		return nil, fault.Wrap(fault.CodeInternal, "failed to look up account", err)
	}
	return u, nil
}

// generateCode returns a uniformly random 6-digit code, zero padded.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func waitSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
