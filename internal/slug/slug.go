// Package slug builds URL slugs and finds a free one in a collection.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	hyphens      = regexp.MustCompile(`-+`)
)

// MaxInsertAttempts bounds how often Insert re-probes after losing a race
// on the unique index.
const MaxInsertAttempts = 5

var ErrConflict = errors.New("slug already taken")

// Make lower-cases title, drops everything outside [a-z0-9 -], turns
// whitespace runs into hyphens, collapses repeated hyphens and trims them
// from both ends.
func Make(title string) string {
	s := strings.ToLower(title)
	s = invalidChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ExistsFunc reports whether candidate is used by a document other than
// the one with excludeID.
type ExistsFunc func(ctx context.Context, candidate, excludeID string) (bool, error)

// Unique probes base, base-1, base-2, ... until exists reports a free slug.
// The probe is check-then-insert and not atomic: two concurrent writers can
// both be handed the same slug. Callers persist through Insert, which
// retries when the unique index rejects the loser.
func Unique(ctx context.Context, base, excludeID string, exists ExistsFunc) (string, error) {
	if base == "" {
		base = "item"
	}

	candidate := base
	for i := 1; ; i++ {
		taken, err := exists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("probe slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// Insert resolves a unique slug for title and calls write with it. When
// write fails with an error wrapping ErrConflict the slug is probed again,
// up to MaxInsertAttempts times.
func Insert(ctx context.Context, title, excludeID string, exists ExistsFunc, write func(slug string) error) (string, error) {
	base := Make(title)

	var lastErr error
	for attempt := 0; attempt < MaxInsertAttempts; attempt++ {
		candidate, err := Unique(ctx, base, excludeID, exists)
		if err != nil {
			return "", err
		}

		err = write(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("slug for %q still conflicting after %d attempts: %w", title, MaxInsertAttempts, lastErr)
}
