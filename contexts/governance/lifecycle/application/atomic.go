package application

import (
	"context"

	"psephos/contexts/governance/lifecycle/ports"
)

// Atomically runs fn through the configured unit of work. Wiring without one
// (memory-backed tests) runs fn directly.
func Atomically(ctx context.Context, atomic ports.Atomic, fn func(context.Context) error) error {
	if atomic == nil {
		return fn(ctx)
	}
	return atomic.Atomically(ctx, fn)
}
