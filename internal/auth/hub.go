package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub is an in-process Provider fed by the hosting layer's auth callbacks.
// It verifies raw access tokens into Identities and fans the resulting events
// out to subscribers in the order they were published.
type Hub struct {
	verifier *Verifier

	// deliverMu serializes publication so subscribers observe events in the
	// order they occurred. Lock order: deliverMu before mu, never the reverse.
	deliverMu sync.Mutex

	mu      sync.Mutex
	current *Session
	subs    map[string]func(Event, *Session)
	order   []string
}

// NewHub returns a Hub that verifies published tokens with verifier.
func NewHub(verifier *Verifier) *Hub {
	return &Hub{
		verifier: verifier,
		subs:     make(map[string]func(Event, *Session)),
	}
}

// CurrentSession returns the session the Hub currently holds, or nil if none.
func (h *Hub) CurrentSession(ctx context.Context) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, nil
	}
	s := *h.current
	return &s, nil
}

// Subscribe registers fn for subsequent events. The returned func unsubscribes;
// calling it more than once is safe.
func (h *Hub) Subscribe(fn func(Event, *Session)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	h.subs[id] = fn
	h.order = append(h.order, id)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// SignIn verifies accessToken, records the resulting session, and publishes a
// signed-in event. Returns ErrInvalidToken if the token does not verify; no
// event is published in that case.
func (h *Hub) SignIn(accessToken string, expiresAt time.Time) error {
	return h.publishToken(EventSignedIn, accessToken, expiresAt)
}

// RestoreSession is SignIn for a session the provider restored (e.g. from a
// persisted refresh token) rather than a fresh credential exchange.
func (h *Hub) RestoreSession(accessToken string, expiresAt time.Time) error {
	return h.publishToken(EventSessionRestored, accessToken, expiresAt)
}

// SignOut clears the current session and publishes a signed-out event.
func (h *Hub) SignOut() {
	h.publish(EventSignedOut, nil)
}

func (h *Hub) publishToken(ev Event, accessToken string, expiresAt time.Time) error {
	identity, err := h.verifier.Verify(accessToken)
	if err != nil {
		return err
	}
	h.publish(ev, &Session{Identity: identity, AccessToken: accessToken, ExpiresAt: expiresAt})
	return nil
}

// publish records s as the current session and delivers ev to subscribers in
// registration order.
func (h *Hub) publish(ev Event, s *Session) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	h.current = s
	fns := make([]func(Event, *Session), 0, len(h.subs))
	for _, id := range h.order {
		if fn, ok := h.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		var sess *Session
		if s != nil {
			cp := *s
			sess = &cp
		}
		fn(ev, sess)
	}
}
