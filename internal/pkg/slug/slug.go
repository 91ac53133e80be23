// Package slug derives URL-safe identifiers from note titles.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9 -]`)
	whitespace   = regexp.MustCompile(`\s+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// Base lowercases the title and reduces it to ASCII alphanumerics and
// hyphens. Returns "" when nothing survives, in which case the caller must
// fall back to another identifier (the record id).
func Base(title string) string {
	s := strings.ToLower(title)
	s = invalidChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Make builds a globally unique slug: the base form of title plus a
// time-derived suffix. fallback is used when the title reduces to nothing.
func Make(title, fallback string) string {
	base := Base(title)
	if base == "" {
		base = fallback
	}
	return base + "-" + strconv.FormatInt(time.Now().UnixMilli(), 36)
}
