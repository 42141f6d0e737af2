package password

import (
	"strings"
	"unicode/utf8"
)

// ViolationKind is a stable, wire-safe tag for a failed policy rule.
// Rendering it into user-facing text is the caller's job.
type ViolationKind string

const (
	TooShort           ViolationKind = "too_short"
	MissingUppercase   ViolationKind = "missing_uppercase"
	MissingLowercase   ViolationKind = "missing_lowercase"
	MissingDigit       ViolationKind = "missing_digit"
	MissingSpecialChar ViolationKind = "missing_special_char"
	CommonPassword     ViolationKind = "common_password"
	RepeatedCharRun    ViolationKind = "repeated_char_run"
)

// Report is the outcome of Validate. Strength is computed independently of Valid.
type Report struct {
	Valid      bool            `json:"valid"`
	Violations []ViolationKind `json:"violations"`
	Strength   int             `json:"strength"`
}

// Has reports whether kind is among the report's violations.
func (r Report) Has(kind ViolationKind) bool {
	for _, v := range r.Violations {
		if v == kind {
			return true
		}
	}
	return false
}

// commonPasswords is matched case-insensitively and exactly (never as a substring).
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1!":  {},
	"12345678":    {},
	"qwerty":      {},
	"abc123":      {},
	"password123": {},
	"admin123":    {},
	"welcome1":    {},
	"letmein":     {},
	"monkey":      {},
}

// rule pairs a predicate with the violation it produces. The table order is
// the order violations appear in a Report.
type rule struct {
	kind     ViolationKind
	violated func(p Policy, pw string, cls charClasses) bool
}

var rules = []rule{
	{TooShort, func(p Policy, pw string, _ charClasses) bool {
		return utf8.RuneCountInString(pw) < p.MinLength
	}},
	{MissingUppercase, func(_ Policy, _ string, c charClasses) bool { return !c.upper }},
	{MissingLowercase, func(_ Policy, _ string, c charClasses) bool { return !c.lower }},
	{MissingDigit, func(_ Policy, _ string, c charClasses) bool { return !c.digit }},
	{MissingSpecialChar, func(_ Policy, _ string, c charClasses) bool { return !c.special }},
	{CommonPassword, func(_ Policy, pw string, _ charClasses) bool {
		_, ok := commonPasswords[strings.ToLower(pw)]
		return ok
	}},
	{RepeatedCharRun, func(_ Policy, pw string, _ charClasses) bool { return hasRepeatedRun(pw, 3) }},
}

// Validate checks the password against every rule and collects all violations
// in one pass. It does not mutate input and has no side effects.
func (c Config) Validate(password string) Report {
	cls := classify(password)

	violations := make([]ViolationKind, 0, len(rules))
	for _, r := range rules {
		if r.violated(c.Policy, password, cls) {
			violations = append(violations, r.kind)
		}
	}

	return Report{
		Valid:      len(violations) == 0,
		Violations: violations,
		Strength:   strength(password, cls),
	}
}

type charClasses struct {
	upper   bool
	lower   bool
	digit   bool
	special bool
}

// classify looks at ASCII classes only; every other rune counts as special.
func classify(pw string) charClasses {
	var c charClasses
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= '0' && r <= '9':
			c.digit = true
		default:
			c.special = true
		}
	}
	return c
}

// hasRepeatedRun reports whether any rune repeats at least n times in a row.
func hasRepeatedRun(pw string, n int) bool {
	var prev rune
	run := 0
	for i, r := range pw {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

// strength scores a password in [0,100]. All contributions are summed before
// the final cap. Length and distinct characters count code points, not bytes,
// so multi-byte input scores the same as its ASCII-length equivalent.
func strength(pw string, cls charClasses) int {
	score := min(40, utf8.RuneCountInString(pw)*2)

	if cls.lower {
		score += 10
	}
	if cls.upper {
		score += 10
	}
	if cls.digit {
		score += 10
	}
	if cls.special {
		score += 15
	}

	distinct := make(map[rune]struct{}, len(pw))
	for _, r := range pw {
		distinct[r] = struct{}{}
	}
	score += min(15, len(distinct))

	return min(100, score)
}
