// Package phone normalizes and masks E.164 phone numbers.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

var (
	e164      = regexp.MustCompile(`^\+[1-9]\d{9,14}$`)
	separator = regexp.MustCompile(`[\s\-()]`)
)

// Sentinel errors returned by Normalize.
var (
	ErrRequired = errors.New("phoneNumber is required")
	ErrFormat   = errors.New("phoneNumber must be in E.164 format, e.g. +919876543210")
)

// Normalize trims the input, removes spaces, dashes and parentheses, and
// checks the result is E.164.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrRequired
	}
	s = separator.ReplaceAllString(s, "")
	if !e164.MatchString(s) {
		return "", ErrFormat
	}
	return s, nil
}

// Valid reports whether s is already E.164 with no separators.
func Valid(s string) bool {
	return e164.MatchString(s)
}

// Mask hides the middle of a number for logging: "+91****10".
func Mask(s string) string {
	if len(s) < 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-2:]
}
