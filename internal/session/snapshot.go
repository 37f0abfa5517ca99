// Package session reconciles the external auth provider's event stream into a
// single consistent Session Snapshot and exposes it to gates and navigation.
package session

import (
	"edu-admin-console/internal/auth"
	"edu-admin-console/internal/profile/domain"
)

// State is the session state machine's state. StateUnauthenticated and
// StateAuthenticatedResolved are the only stable states; the others resolve to
// a stable state after at most one profile lookup.
type State int

const (
	StateInitializing State = iota
	StateUnauthenticated
	StateAuthenticatedLoadingProfile
	StateAuthenticatedResolved
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedLoadingProfile:
		return "authenticated_loading_profile"
	case StateAuthenticatedResolved:
		return "authenticated_resolved"
	default:
		return "unknown"
	}
}

// Snapshot is the externally visible session state: who the user is and what
// they may see. It is exposed as a read-only value; consumers must not retain
// one across updates and must not mutate the referenced Identity or Profile.
//
// Loading is true until exactly one profile lookup cycle has completed after
// each identity change. IsAdmin and IsTeacher are derived solely from
// Profile.Role and are recomputed atomically with Profile; a new Identity is
// never paired with a previous Profile's flags.
type Snapshot struct {
	State     State
	Identity  *auth.Identity
	Profile   *domain.Profile
	IsAdmin   bool
	IsTeacher bool
	Loading   bool
}
