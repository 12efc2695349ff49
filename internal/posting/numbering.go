package posting

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SequenceStore issues the next value of a (prefix, year) counter inside the
// caller's transaction.
type SequenceStore interface {
	NextSequence(ctx context.Context, prefix string, year int) (int64, error)
}

// NumberGenerator formats document numbers as PREFIX/YYYY/000123. Numbers are
// issued once, on first insert, and never recomputed.
type NumberGenerator struct {
	prefixes map[Kind]string
}

// NewNumberGenerator builds a generator. overrides replaces the default prefix
// of a kind when non-empty.
func NewNumberGenerator(overrides map[Kind]string) NumberGenerator {
	prefixes := make(map[Kind]string, len(policies))
	for kind, policy := range policies {
		prefixes[kind] = policy.Prefix
	}
	for kind, prefix := range overrides {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			prefixes[kind] = strings.ToUpper(prefix)
		}
	}
	return NumberGenerator{prefixes: prefixes}
}

// GenerateNumber draws the next number for kind in the year of seed.
func (g NumberGenerator) GenerateNumber(ctx context.Context, seq SequenceStore, kind Kind, seed time.Time) (string, error) {
	prefix, ok := g.prefixes[kind]
	if !ok {
		return "", ErrUnknownKind
	}
	year := seed.Year()
	next, err := seq.NextSequence(ctx, prefix, year)
	if err != nil {
		return "", fmt.Errorf("next sequence %s/%d: %w", prefix, year, err)
	}
	return fmt.Sprintf("%s/%04d/%06d", prefix, year, next), nil
}
