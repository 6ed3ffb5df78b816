package core

import (
	"context"
	"strings"
	"time"
)

// NowFunc is mockable.
var NowFunc = func() time.Time { return time.Now().UTC() }

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings cleans every element of `ss` and drops the blank ones.
func CleanStrings(ss []string, lower ...bool) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = CleanString(s, lower...); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ContainsString reports whether `s` is in `ss`.
func ContainsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// RetryOnce runs fn and, if the store did not acknowledge in time, runs it once more.
// fn must be keyed by the same idempotency key on both attempts.
// A second transient failure is surfaced as a ConflictError.
func RetryOnce(ctx context.Context, entity, key string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !IsTransient(err) {
		return err
	}
	if err = fn(ctx); IsTransient(err) {
		return NewConflictError(entity, key, "store did not acknowledge the write, retry with the same key")
	}
	return err
}

// WithStoreTimeout bounds a store call, a zero timeout leaves ctx untouched.
func WithStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
