package security

import "strings"

// SanitizeCredential trims s and strips one pair of matching surrounding
// quotes, which secrets pasted into env files often carry.
func SanitizeCredential(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
