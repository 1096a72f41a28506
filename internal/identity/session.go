// Package identity issues and verifies the session tokens handed out after
// a successful OTP login.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLen is the shortest HMAC secret NewSessionIssuer accepts.
const MinSecretLen = 32

// ErrWeakSecret is returned by NewSessionIssuer for short secrets.
var ErrWeakSecret = fmt.Errorf("session secret must be at least %d bytes", MinSecretLen)

// SessionClaims are the JWT claims of a donor session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	PhoneNumber string `json:"phone_number"`
	Type        string `json:"type"` // always "user"
}

// SessionIssuer signs session tokens with HS256.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates a SessionIssuer. A zero ttl means 24 hours.
func NewSessionIssuer(secret, issuer string, ttl time.Duration) (*SessionIssuer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetClock replaces the time source. Intended for tests.
func (s *SessionIssuer) SetClock(now func() time.Time) {
	s.now = now
}

// Issue creates a signed session token for the user and returns it with its expiry.
func (s *SessionIssuer) Issue(userID, phoneNumber string) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		PhoneNumber: phoneNumber,
		Type:        "user",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *SessionIssuer) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token claims")
	}
	if claims.Type != "user" {
		return nil, errors.New("not a session token")
	}
	return claims, nil
}
