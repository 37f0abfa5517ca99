package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"edu-admin-console/internal/auth"
	"edu-admin-console/internal/profile/domain"
	"edu-admin-console/internal/profile/repository"
	"edu-admin-console/internal/telemetry"
)

// defaultLookupTimeout bounds the one profile lookup issued per identity
// transition. A timed-out lookup resolves fail-closed like any other failure.
const defaultLookupTimeout = 10 * time.Second

// telemetrySource identifies this component in emitted transition events.
const telemetrySource = "session-manager"

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("session: manager already started")

// Manager owns the one authoritative Session Snapshot for the process. It
// subscribes to the auth provider's event stream, issues one profile lookup
// per identity transition, and publishes consistent snapshots to watchers.
//
// All failures are absorbed into the snapshot (fail-closed placeholder
// profile, no privileged flags); Manager's consumers never see an error.
type Manager struct {
	provider      auth.Provider
	profiles      repository.Store
	emitter       telemetry.EventEmitter // may be nil
	lookupTimeout time.Duration

	// deliverMu serializes snapshot publication so watchers observe updates in
	// the order they were produced. Lock order: deliverMu before mu.
	deliverMu sync.Mutex

	mu       sync.Mutex
	snap     Snapshot
	gen      uint64 // bumped on every identity transition; stale lookups compare against it
	started  bool
	closed   bool
	sawEvent bool
	unsub    func()
	watchers map[string]func(Snapshot)
	order    []string
}

// NewManager returns an unstarted Manager. emitter may be nil to disable
// telemetry; lookupTimeout <= 0 selects the default.
func NewManager(provider auth.Provider, profiles repository.Store, emitter telemetry.EventEmitter, lookupTimeout time.Duration) *Manager {
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	return &Manager{
		provider:      provider,
		profiles:      profiles,
		emitter:       emitter,
		lookupTimeout: lookupTimeout,
		snap:          Snapshot{State: StateInitializing, Loading: true},
		watchers:      make(map[string]func(Snapshot)),
	}
}

// Start subscribes to the provider's event stream and applies any
// already-existing session, so an already-signed-in user never observes an
// unauthenticated snapshot. Until Start resolves, the snapshot reports
// Loading. Start may be called once.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	unsub := m.provider.Subscribe(m.handleEvent)
	m.mu.Lock()
	m.unsub = unsub
	m.mu.Unlock()

	sess, err := m.provider.CurrentSession(ctx)
	if err != nil {
		// No existing session can be restored; treated as signed out.
		log.Printf("session: restore existing session: %v", err)
		sess = nil
	}

	m.apply(func() (bool, *telemetry.Event) {
		if m.sawEvent {
			// A live event already arrived and produced a snapshot; the
			// startup session is outdated.
			return false, nil
		}
		if sess == nil {
			return m.becomeUnauthenticatedLocked(), nil
		}
		return m.beginLookupLocked(sess.Identity), nil
	})
	return nil
}

// Snapshot returns the current Session Snapshot as a read-only value.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Watch registers fn to receive every snapshot produced after registration,
// in production order. The returned func cancels the registration; calling it
// more than once is safe. fn must not block.
func (m *Manager) Watch(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.watchers[id] = fn
	m.order = append(m.order, id)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

// Close unsubscribes from the provider and stops all snapshot updates,
// including resolutions of lookups still in flight.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsub := m.unsub
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// handleEvent processes one provider event. Events are delivered in order by
// the provider and applied in that order here.
func (m *Manager) handleEvent(ev auth.Event, s *auth.Session) {
	m.apply(func() (bool, *telemetry.Event) {
		m.sawEvent = true
		if ev == auth.EventSignedOut || s == nil {
			wasAuthenticated := m.snap.Identity != nil
			changed := m.becomeUnauthenticatedLocked()
			if changed && wasAuthenticated {
				return true, &telemetry.Event{
					State:     m.snap.State.String(),
					EventType: telemetry.EventSignedOut,
					Source:    telemetrySource,
					CreatedAt: time.Now().UTC(),
				}
			}
			return changed, nil
		}
		return m.beginLookupLocked(s.Identity), nil
	})
}

// becomeUnauthenticatedLocked clears identity, profile, and flags. The
// generation bump invalidates any lookup still in flight.
func (m *Manager) becomeUnauthenticatedLocked() bool {
	m.gen++
	m.snap = Snapshot{State: StateUnauthenticated}
	return true
}

// beginLookupLocked starts a profile lookup for id and publishes the loading
// snapshot. A replayed sign-in for the identity already resolved is a no-op:
// no lookup, no snapshot change.
func (m *Manager) beginLookupLocked(id auth.Identity) bool {
	if m.snap.State == StateAuthenticatedResolved && m.snap.Identity != nil && m.snap.Identity.ID == id.ID {
		return false
	}
	m.gen++
	gen := m.gen
	idCopy := id
	m.snap = Snapshot{State: StateAuthenticatedLoadingProfile, Identity: &idCopy, Loading: true}
	go m.lookup(gen, id)
	return true
}

// lookup performs the one profile lookup for an identity transition and, if
// still current, publishes the resolved snapshot. Lookup failure and a missing
// record resolve identically: a placeholder profile with no privileged role.
// Failed lookups are not retried; the next identity transition issues a fresh one.
func (m *Manager) lookup(gen uint64, id auth.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), m.lookupTimeout)
	defer cancel()

	p, err := m.profiles.GetProfileByID(ctx, id.ID)
	if err != nil {
		log.Printf("session: profile lookup for %s failed: %v", id.ID, err)
		p = nil
	}
	if p == nil {
		p = domain.Placeholder(id.ID, id.Email)
	}

	m.apply(func() (bool, *telemetry.Event) {
		if m.gen != gen || m.snap.Identity == nil || m.snap.Identity.ID != id.ID {
			// A newer auth event superseded this lookup; drop the result.
			return false, nil
		}
		idCopy := id
		m.snap = Snapshot{
			State:     StateAuthenticatedResolved,
			Identity:  &idCopy,
			Profile:   p,
			IsAdmin:   p.Role == domain.RoleAdmin,
			IsTeacher: p.Role == domain.RoleTeacher,
		}
		return true, &telemetry.Event{
			UserID:    id.ID,
			Email:     p.Email,
			Role:      string(p.Role),
			State:     m.snap.State.String(),
			EventType: telemetry.EventSessionResolved,
			Source:    telemetrySource,
			CreatedAt: time.Now().UTC(),
		}
	})
}

// apply runs mutate under the state lock and, when it reports a change,
// delivers the new snapshot to watchers and emits the transition event.
// deliverMu is held across mutation and delivery so watchers observe
// snapshots in exactly the order they were produced.
func (m *Manager) apply(mutate func() (bool, *telemetry.Event)) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	changed, ev := mutate()
	if !changed {
		m.mu.Unlock()
		return
	}
	snap := m.snap
	fns := make([]func(Snapshot), 0, len(m.watchers))
	for _, id := range m.order {
		if fn, ok := m.watchers[id]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	if ev != nil {
		telemetry.EmitAsync(m.emitter, context.Background(), ev)
	}
}
