package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	defaultSlug   = "category"
	maxSlugLength = 100
	maxSlugTries  = 10000
)

type SlugChecker interface {
	SlugExists(ctx context.Context, parentID *int64, slug string, excludeID int64) (bool, error)
}

// Slugify decomposes name, drops non-ASCII, lowercases, keeps letters,
// digits, underscores, spaces and hyphens, and joins runs of spaces and
// hyphens with a single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false

	for _, r := range norm.NFKD.String(name) {
		if r > unicode.MaxASCII {
			continue
		}
		r = unicode.ToLower(r)

		switch {
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		}
	}

	return strings.Trim(b.String(), "-_")
}

// ValidSlug reports whether s is made only of ASCII letters, digits,
// underscores and hyphens. Case is kept as supplied.
func ValidSlug(s string) bool {
	if s == "" || len(s) > maxSlugLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// UniqueSlug returns base, or base-2, base-3, ... whichever is free among
// the children of parentID. excludeID skips the category being updated.
func UniqueSlug(ctx context.Context, checker SlugChecker, parentID *int64, base string, excludeID int64) (string, error) {
	if base == "" {
		base = defaultSlug
	}
	if len(base) > maxSlugLength-6 {
		base = strings.TrimRight(base[:maxSlugLength-6], "-")
	}

	slug := base
	for n := 2; n < maxSlugTries; n++ {
		exists, err := checker.SlugExists(ctx, parentID, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}

	return "", fmt.Errorf("no free slug for %q", base)
}
