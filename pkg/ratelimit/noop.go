package ratelimit

import "context"

// Noop never throttles.
type Noop struct{}

// Allow always returns true.
func (Noop) Allow(context.Context, string) bool { return true }

// Record does nothing.
func (Noop) Record(context.Context, string, bool) {}
