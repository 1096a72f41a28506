package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jmerrifield20/donationcore/internal/security"
)

// SignatureVerifier checks the HMAC-SHA256 signature the payment gateway
// attaches to a completed checkout.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier returns a verifier keyed with the sanitized secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(security.SanitizeCredential(secret))}
}

// Configured reports whether a non-empty secret is set.
func (v *SignatureVerifier) Configured() bool {
	return len(v.secret) > 0
}

// Sign returns the lowercase hex signature for the order and payment pair.
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature authenticates orderID and paymentID.
// Any blank input, or an unconfigured secret, is invalid.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	if !v.Configured() || isBlank(orderID) || isBlank(paymentID) || isBlank(signature) {
		return false
	}
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
