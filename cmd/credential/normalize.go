package credential

import (
	"strings"
	"unicode/utf8"
)

const maxSubjectRunes = 320

// NormalizeSubject performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case. Unicode confusables are not folded.
func NormalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validSubject reports whether the trimmed subject is non-empty, bounded and
// free of control characters.
func validSubject(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxSubjectRunes {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
