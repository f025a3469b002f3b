// Package errx provides small helpers for wrapping sentinel errors with
// additional context while keeping errors.Is/As working against the sentinel.
package errx

import "fmt"

// Wrap returns an error that reports sentinel's message followed by cause's,
// with both still matchable via errors.Is.
func Wrap(sentinel, cause error) error {
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// With returns an error built from sentinel's message plus a formatted
// suffix. format may itself contain %w verbs for additional errors passed
// in args; sentinel is always the first wrapped error.
func With(sentinel error, format string, args ...any) error {
	all := make([]any, 0, len(args)+1)
	all = append(all, sentinel)
	all = append(all, args...)
	return fmt.Errorf("%w"+format, all...)
}
