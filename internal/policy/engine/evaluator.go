package engine

import (
	"context"
)

// Evaluator evaluates access policies using OPA or other engines.
type Evaluator interface {
	// Allow reports whether a user holding role may access the named resource.
	// Resources are the console's section identifiers (e.g. "dashboard",
	// "users"). An error means the policy could not be evaluated; callers
	// decide how to degrade, and gates degrade closed.
	Allow(ctx context.Context, role, resource string) (bool, error)
}
