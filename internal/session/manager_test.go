package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"edu-admin-console/internal/auth"
	"edu-admin-console/internal/profile/domain"
)

// fakeProvider implements auth.Provider with manually triggered events.
type fakeProvider struct {
	mu         sync.Mutex
	current    *auth.Session
	currentErr error
	subs       []func(auth.Event, *auth.Session)
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*auth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentErr != nil {
		return nil, p.currentErr
	}
	if p.current == nil {
		return nil, nil
	}
	s := *p.current
	return &s, nil
}

func (p *fakeProvider) Subscribe(fn func(auth.Event, *auth.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.subs)
	p.subs = append(p.subs, fn)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.subs[i] = nil
	}
}

func (p *fakeProvider) emit(ev auth.Event, s *auth.Session) {
	p.mu.Lock()
	fns := append([](func(auth.Event, *auth.Session))(nil), p.subs...)
	p.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(ev, s)
		}
	}
}

// fakeStore implements repository.Store with per-id delays and a forced error.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	delays   map[string]time.Duration
	err      error
	calls    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*domain.Profile),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}
}

func (s *fakeStore) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	s.mu.Lock()
	s.calls[id]++
	delay := s.delays[id]
	err := s.err
	p := s.profiles[id]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *fakeStore) callCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

// recorder collects every snapshot a watcher observes, in delivery order.
type recorder struct {
	mu  sync.Mutex
	all []Snapshot
	ch  chan Snapshot
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Snapshot, 64)}
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	r.all = append(r.all, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *recorder) snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.all...)
}

// waitFor receives snapshots until cond matches or the deadline passes.
func (r *recorder) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-r.ch:
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot; observed %d so far", len(r.snapshots()))
		}
	}
}

func adminProfile(id string) *domain.Profile {
	return &domain.Profile{ID: id, Email: id + "@example.com", Role: domain.RoleAdmin}
}

func teacherProfile(id string) *domain.Profile {
	return &domain.Profile{ID: id, Email: id + "@example.com", Role: domain.RoleTeacher}
}

func sessionFor(id string) *auth.Session {
	return &auth.Session{Identity: auth.Identity{ID: id, Email: id + "@example.com"}}
}

func startManager(t *testing.T, provider *fakeProvider, store *fakeStore) (*Manager, *recorder) {
	t.Helper()
	m := NewManager(provider, store, nil, time.Second)
	rec := newRecorder()
	m.Watch(rec.observe)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Close)
	return m, rec
}

func TestManager_InitialSnapshotIsLoading(t *testing.T) {
	m := NewManager(&fakeProvider{}, newFakeStore(), nil, 0)
	snap := m.Snapshot()
	if snap.State != StateInitializing {
		t.Errorf("state = %v, want initializing", snap.State)
	}
	if !snap.Loading {
		t.Error("initial snapshot must report loading")
	}
	if snap.IsAdmin || snap.IsTeacher {
		t.Error("initial snapshot must carry no privileges")
	}
}

func TestManager_StartNoSession(t *testing.T) {
	_, rec := startManager(t, &fakeProvider{}, newFakeStore())

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })
	if snap.Loading {
		t.Error("unauthenticated snapshot must not report loading")
	}
	if snap.Identity != nil || snap.Profile != nil {
		t.Errorf("identity/profile should be nil, got %+v", snap)
	}
}

func TestManager_StartCurrentSessionError(t *testing.T) {
	provider := &fakeProvider{currentErr: errors.New("provider unavailable")}
	_, rec := startManager(t, provider, newFakeStore())

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })
	if snap.IsAdmin || snap.IsTeacher {
		t.Error("failed session restore must not grant privileges")
	}
}

func TestManager_StartWithExistingSession(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	provider := &fakeProvider{current: sessionFor("u1")}

	_, rec := startManager(t, provider, store)

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })
	if !snap.IsAdmin || snap.IsTeacher {
		t.Errorf("flags = admin %v teacher %v, want admin only", snap.IsAdmin, snap.IsTeacher)
	}

	// An already-signed-in user must never observe an unauthenticated flash.
	for i, s := range rec.snapshots() {
		if s.State == StateUnauthenticated {
			t.Errorf("snapshot %d is unauthenticated during restore", i)
		}
	}
}

func TestManager_SignInAdmin(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u1"))

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })
	if snap.Identity == nil || snap.Identity.ID != "u1" {
		t.Fatalf("identity = %+v, want u1", snap.Identity)
	}
	if !snap.IsAdmin || snap.IsTeacher || snap.Loading {
		t.Errorf("snapshot = %+v, want admin resolved", snap)
	}
	if snap.Profile == nil || snap.Profile.Role != domain.RoleAdmin {
		t.Errorf("profile = %+v, want admin role", snap.Profile)
	}
}

func TestManager_SignInTeacher(t *testing.T) {
	store := newFakeStore()
	store.profiles["u2"] = teacherProfile("u2")
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u2"))

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })
	if snap.IsAdmin || !snap.IsTeacher {
		t.Errorf("flags = admin %v teacher %v, want teacher only", snap.IsAdmin, snap.IsTeacher)
	}
}

func TestManager_LookupNotFound_FailsClosed(t *testing.T) {
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, newFakeStore())
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u3"))

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })
	if snap.IsAdmin || snap.IsTeacher {
		t.Error("missing profile record must resolve with no privileges")
	}
	if snap.Profile == nil {
		t.Fatal("a profile must always be present once an identity is")
	}
	if snap.Profile.Role != domain.RoleNone {
		t.Errorf("placeholder role = %q, want none", snap.Profile.Role)
	}
	if snap.Profile.ID != "u3" || snap.Profile.Email != "u3@example.com" {
		t.Errorf("placeholder = %+v, want identity attributes carried over", snap.Profile)
	}
}

func TestManager_LookupError_FailsClosed(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	store.err = errors.New("database down")
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u1"))

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })
	if snap.IsAdmin || snap.IsTeacher {
		t.Error("lookup failure must resolve with no privileges")
	}
	if snap.Profile == nil || snap.Profile.Role != domain.RoleNone {
		t.Errorf("profile = %+v, want fail-closed placeholder", snap.Profile)
	}
}

func TestManager_SignOutClearsSnapshot(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u1"))
	rec.waitFor(t, func(s Snapshot) bool { return s.IsAdmin })

	provider.emit(auth.EventSignedOut, nil)

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })
	if snap.Identity != nil || snap.Profile != nil || snap.IsAdmin || snap.IsTeacher || snap.Loading {
		t.Errorf("snapshot after sign-out = %+v, want cleared", snap)
	}

	// No intermediate frame: the resolved admin snapshot is followed directly
	// by the unauthenticated one.
	all := rec.snapshots()
	last := all[len(all)-1]
	prev := all[len(all)-2]
	if last.State != StateUnauthenticated || prev.State != StateAuthenticatedResolved {
		t.Errorf("final transitions = %v -> %v, want resolved -> unauthenticated", prev.State, last.State)
	}
}

func TestManager_StaleLookupSuperseded(t *testing.T) {
	store := newFakeStore()
	store.profiles["old"] = adminProfile("old")
	store.profiles["new"] = teacherProfile("new")
	store.delays["old"] = 200 * time.Millisecond
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("old"))
	provider.emit(auth.EventSignedIn, sessionFor("new"))

	snap := rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })
	if snap.Identity.ID != "new" || !snap.IsTeacher || snap.IsAdmin {
		t.Errorf("resolved snapshot = %+v, want teacher new", snap)
	}

	// Let the slow lookup for the superseded identity resolve and be dropped.
	time.Sleep(300 * time.Millisecond)

	for i, s := range rec.snapshots() {
		if s.Identity != nil && s.Identity.ID == "old" && s.State == StateAuthenticatedResolved {
			t.Errorf("snapshot %d resolved for superseded identity", i)
		}
	}
	if got := rec.snapshots(); got[len(got)-1].Identity.ID != "new" {
		t.Errorf("final identity = %q, want new", got[len(got)-1].Identity.ID)
	}
}

func TestManager_StaleLookupAcrossSignOut(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	store.delays["u1"] = 150 * time.Millisecond
	provider := &fakeProvider{}
	m, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u1"))
	provider.emit(auth.EventSignedOut, nil)

	time.Sleep(300 * time.Millisecond)

	snap := m.Snapshot()
	if snap.State != StateUnauthenticated || snap.IsAdmin {
		t.Errorf("snapshot = %+v, want unauthenticated after sign-out", snap)
	}
}

func TestManager_RepeatedSignInIdempotent(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u1"))
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })
	before := len(rec.snapshots())

	provider.emit(auth.EventSignedIn, sessionFor("u1"))
	time.Sleep(100 * time.Millisecond)

	if got := store.callCount("u1"); got != 1 {
		t.Errorf("lookup count = %d, want 1 (replayed sign-in must not re-fetch)", got)
	}
	if got := len(rec.snapshots()); got != before {
		t.Errorf("snapshot count = %d, want %d (replayed sign-in must not change the snapshot)", got, before)
	}
}

func TestManager_NoPrivilegesWhileLoading(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	store.delays["u1"] = 50 * time.Millisecond
	provider := &fakeProvider{}
	_, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u1"))
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateAuthenticatedResolved })

	for i, s := range rec.snapshots() {
		if s.Loading && (s.IsAdmin || s.IsTeacher) {
			t.Errorf("snapshot %d reports privileges while loading", i)
		}
	}
}

func TestManager_CloseStopsUpdates(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	store.delays["u1"] = 100 * time.Millisecond
	provider := &fakeProvider{}
	m, rec := startManager(t, provider, store)
	rec.waitFor(t, func(s Snapshot) bool { return s.State == StateUnauthenticated })

	provider.emit(auth.EventSignedIn, sessionFor("u1"))
	m.Close()
	before := m.Snapshot()

	time.Sleep(250 * time.Millisecond)

	after := m.Snapshot()
	if after != before {
		t.Errorf("snapshot changed after Close: %+v -> %+v", before, after)
	}
}

func TestManager_StartTwice(t *testing.T) {
	m := NewManager(&fakeProvider{}, newFakeStore(), nil, time.Second)
	defer m.Close()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start: err = %v, want ErrAlreadyStarted", err)
	}
}

func TestManager_WatchCancel(t *testing.T) {
	store := newFakeStore()
	store.profiles["u1"] = adminProfile("u1")
	provider := &fakeProvider{}
	m := NewManager(provider, store, nil, time.Second)
	defer m.Close()

	rec := newRecorder()
	cancel := m.Watch(rec.observe)
	cancel()
	cancel() // calling twice is safe

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	provider.emit(auth.EventSignedIn, sessionFor("u1"))
	time.Sleep(100 * time.Millisecond)

	if got := len(rec.snapshots()); got != 0 {
		t.Errorf("cancelled watcher observed %d snapshots, want 0", got)
	}
}
