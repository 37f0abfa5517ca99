// Package gate decides, per protected section, whether the current session
// snapshot may render it, and where to send the user when it may not.
package gate

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"edu-admin-console/internal/policy/engine"
	"edu-admin-console/internal/session"
)

// DefaultSignInPath is where unauthenticated users are sent.
const DefaultSignInPath = "/signin"

const policyEvalTimeout = 2 * time.Second

// Predicate reports whether a snapshot satisfies a section's access
// requirement. Predicates must be pure functions of the snapshot.
type Predicate func(session.Snapshot) bool

// Admin passes only a resolved admin session.
func Admin(s session.Snapshot) bool { return s.IsAdmin }

// Staff passes a resolved admin or teacher session.
func Staff(s session.Snapshot) bool { return s.IsAdmin || s.IsTeacher }

// Anyone passes any authenticated session, privileged or not.
func Anyone(s session.Snapshot) bool { return s.Identity != nil }

// Decision is the gate's verdict for one snapshot against one predicate.
type Decision int

const (
	// DecisionPending means the session is still resolving; render a neutral
	// placeholder, never the protected content and never a redirect.
	DecisionPending Decision = iota
	// DecisionAllow renders the protected content.
	DecisionAllow
	// DecisionSignIn redirects the unauthenticated user to sign-in.
	DecisionSignIn
	// DecisionUnauthorized turns the authenticated but unprivileged user away.
	DecisionUnauthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionSignIn:
		return "sign_in"
	case DecisionUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Gate evaluates snapshots against predicates.
type Gate struct {
	signInPath string
}

// New returns a Gate. signInPath may be empty to use DefaultSignInPath.
func New(signInPath string) *Gate {
	if signInPath == "" {
		signInPath = DefaultSignInPath
	}
	return &Gate{signInPath: signInPath}
}

// Evaluate produces the verdict for snap against pred. A snapshot still
// loading is always Pending regardless of identity, so a privileged decision
// is never made from an unresolved profile. A nil predicate denies.
func (g *Gate) Evaluate(snap session.Snapshot, pred Predicate) Decision {
	if snap.Loading || snap.State == session.StateInitializing {
		return DecisionPending
	}
	if snap.Identity == nil {
		return DecisionSignIn
	}
	if pred == nil || !pred(snap) {
		return DecisionUnauthorized
	}
	return DecisionAllow
}

// RedirectPath returns the path a decision redirects to and whether it
// redirects at all. Allow and Pending do not redirect.
func (g *Gate) RedirectPath(d Decision) (string, bool) {
	switch d {
	case DecisionSignIn:
		return g.signInPath, true
	case DecisionUnauthorized:
		return g.signInPath + "?reason=unauthorized", true
	default:
		return "", false
	}
}

// Require maps Evaluate to a gRPC status error for callers guarding RPC-style
// operations: nil on allow, Unavailable while pending, Unauthenticated for
// sign-in, PermissionDenied otherwise.
func (g *Gate) Require(snap session.Snapshot, pred Predicate) error {
	switch g.Evaluate(snap, pred) {
	case DecisionAllow:
		return nil
	case DecisionPending:
		return status.Error(codes.Unavailable, "session still resolving")
	case DecisionSignIn:
		return status.Error(codes.Unauthenticated, "sign-in required")
	default:
		return status.Error(codes.PermissionDenied, "access denied")
	}
}

// Policy adapts a policy evaluator into a Predicate for one named resource.
// Evaluation errors deny.
func Policy(evaluator engine.Evaluator, resource string) Predicate {
	return func(snap session.Snapshot) bool {
		role := ""
		if snap.Profile != nil {
			role = string(snap.Profile.Role)
		}
		ctx, cancel := context.WithTimeout(context.Background(), policyEvalTimeout)
		defer cancel()
		allowed, err := evaluator.Allow(ctx, role, resource)
		if err != nil {
			log.Printf("gate: policy evaluation for %s failed: %v", resource, err)
			return false
		}
		return allowed
	}
}
