// Package auth defines the boundary to the external auth provider: the
// Identity and Session types, the consumed Provider interface, and an
// in-process Hub that turns raw provider callbacks into verified events.
package auth

import (
	"context"
	"time"
)

// Identity is the authenticated-subject fact supplied by the external auth
// provider. The session layer holds it read-only for the session's lifetime.
type Identity struct {
	ID    string
	Email string // optional
}

// Session is a live provider session for one identity.
type Session struct {
	Identity    Identity
	AccessToken string
	ExpiresAt   time.Time
}

// Event is the kind of an auth provider event.
type Event string

const (
	EventSignedIn        Event = "signed_in"
	EventSignedOut       Event = "signed_out"
	EventSessionRestored Event = "session_restored"
)

// Provider is the consumed surface of the external auth provider.
type Provider interface {
	// CurrentSession returns the already-existing session, or nil if none.
	// One-shot; used at startup before subscribing to live events.
	CurrentSession(ctx context.Context) (*Session, error)

	// Subscribe registers fn for provider events. fn receives the event kind
	// and the session after the event (nil on sign-out), in the order the
	// events occurred. The returned func unsubscribes; calling it more than
	// once is safe.
	Subscribe(fn func(Event, *Session)) (unsubscribe func())
}
