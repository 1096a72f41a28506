package service_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/jmerrifield20/donationcore/internal/donation/service"
)

func TestSignatureVerifier_matchesGatewayScheme(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("order_1|pay_1"))
	want := hex.EncodeToString(mac.Sum(nil))

	v := service.NewSignatureVerifier("s3cret")
	if got := v.Sign("order_1", "pay_1"); got != want {
		t.Fatalf("Sign: got %s, want %s", got, want)
	}
	if !v.Verify("order_1", "pay_1", want) {
		t.Error("valid signature rejected")
	}
}

func TestSignatureVerifier_rejects(t *testing.T) {
	v := service.NewSignatureVerifier("s3cret")
	good := v.Sign("order_1", "pay_1")

	cases := []struct {
		name                string
		order, payment, sig string
	}{
		{"swapped ids", "pay_1", "order_1", good},
		{"other payment", "order_1", "pay_2", good},
		{"truncated", "order_1", "pay_1", good[:len(good)-2]},
		{"blank order", "", "pay_1", good},
		{"blank payment", "order_1", " ", good},
		{"blank signature", "order_1", "pay_1", ""},
	}
	for _, tc := range cases {
		if v.Verify(tc.order, tc.payment, tc.sig) {
			t.Errorf("%s: accepted", tc.name)
		}
	}
}

func TestSignatureVerifier_emptySecret(t *testing.T) {
	v := service.NewSignatureVerifier("")
	if v.Configured() {
		t.Error("empty secret reported as configured")
	}
	if v.Verify("order_1", "pay_1", v.Sign("order_1", "pay_1")) {
		t.Error("empty secret must reject every signature")
	}
}

func TestSignatureVerifier_sanitizesSecret(t *testing.T) {
	quoted := service.NewSignatureVerifier(`  "s3cret"  `)
	plain := service.NewSignatureVerifier("s3cret")
	if quoted.Sign("o", "p") != plain.Sign("o", "p") {
		t.Error("quoted secret should sign like the bare secret")
	}
}
