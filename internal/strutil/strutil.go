package strutil

import (
	"strings"
	"unicode/utf8"
)

// TruncateUTF8 returns the longest prefix of s that is at most maxBytes
// bytes and does not split a multi-byte UTF-8 character.
func TruncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// ContainsFold reports whether sub occurs in s, ignoring ASCII/Unicode case.
func ContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// FirstContainedFold returns the first member of subs contained in s
// (case-insensitively) and true, or "" and false when none match. Order of
// subs is significant to callers.
func FirstContainedFold(s string, subs []string) (string, bool) {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if sub == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(sub)) {
			return sub, true
		}
	}
	return "", false
}
