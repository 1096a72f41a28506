package phone_test

import (
	"errors"
	"testing"

	"github.com/jmerrifield20/donationcore/internal/phone"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"+919876543210", "+919876543210", nil},
		{"  +91 98765-43210 ", "+919876543210", nil},
		{"+1 (415) 555-2671", "+14155552671", nil},
		{"", "", phone.ErrRequired},
		{"   ", "", phone.ErrRequired},
		{"919876543210", "", phone.ErrFormat},
		{"+0123456789", "", phone.ErrFormat},
		{"+12345", "", phone.ErrFormat},
		{"+1234567890123456", "", phone.ErrFormat},
		{"+91abc6543210", "", phone.ErrFormat},
	}
	for _, tc := range cases {
		got, err := phone.Normalize(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Normalize(%q): err = %v, want %v", tc.in, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Normalize(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMask(t *testing.T) {
	if got := phone.Mask("+919876543210"); got != "+91****10" {
		t.Errorf("Mask: got %q", got)
	}
	if got := phone.Mask("+123"); got != "******" {
		t.Errorf("Mask short: got %q", got)
	}
}
