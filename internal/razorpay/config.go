package razorpay

import (
	"errors"
	"strings"

	"github.com/jmerrifield20/donationcore/internal/security"
)

// Modes accepted by Config.Mode.
const (
	ModeTest = "test"
	ModeLive = "live"
)

// ErrConfigMissing is returned when either half of the key pair is empty.
var ErrConfigMissing = errors.New("Razorpay key configuration missing. Set razorpay.key_id and razorpay.key_secret")

// Config holds the gateway credentials. Values are sanitized before use.
type Config struct {
	KeyID     string
	KeySecret string
	Mode      string // "test" (default) or "live"
	BaseURL   string // default https://api.razorpay.com
}

// Sanitized returns c with credentials trimmed, surrounding quotes removed
// and the mode lowercased.
func (c Config) Sanitized() Config {
	c.KeyID = security.SanitizeCredential(c.KeyID)
	c.KeySecret = security.SanitizeCredential(c.KeySecret)
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeTest
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.razorpay.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Validate checks that the key pair is present and that the key prefix
// matches the mode. It expects a sanitized Config.
func (c Config) Validate() error {
	if c.KeyID == "" || c.KeySecret == "" {
		return ErrConfigMissing
	}
	switch c.Mode {
	case ModeTest:
		if !strings.HasPrefix(c.KeyID, "rzp_test_") {
			return errors.New("Razorpay mode/key mismatch. test mode requires rzp_test_ key")
		}
	case ModeLive:
		if !strings.HasPrefix(c.KeyID, "rzp_live_") {
			return errors.New("Razorpay mode/key mismatch. live mode requires rzp_live_ key")
		}
	default:
		return errors.New("Invalid razorpay.mode. Use 'test' or 'live'")
	}
	return nil
}

// KeyHint returns a loggable fingerprint of the key ID.
func (c Config) KeyHint() string {
	id := c.KeyID
	if len(id) <= 12 {
		return "****"
	}
	return id[:8] + "****" + id[len(id)-4:]
}
