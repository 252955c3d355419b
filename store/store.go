// Package store holds the session snapshot and drives the
// authentication lifecycle: login, logout, refresh, and the credential
// watcher that picks up tokens set outside this instance's call path.
//
// The store serializes application of fetch results with a generation
// counter: a result is applied only if no newer fetch has been
// initiated since it started, so two racing fetches can never leave the
// snapshot reflecting the older one. Snapshots are replaced atomically;
// a failed refresh leaves the previous snapshot untouched.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	session "github.com/plazaops/session-go"
	"github.com/plazaops/session-go/audit"
	"github.com/plazaops/session-go/credstore"
	"github.com/plazaops/session-go/metrics"
)

// State is the session lifecycle state.
type State int

const (
	// Unauthenticated: no credential, empty snapshot.
	Unauthenticated State = iota

	// Loading: a credential is present and the first context fetch of
	// this login cycle is in flight.
	Loading

	// Authenticated: a hydrated snapshot is held.
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Subscriber is notified with a copy of the snapshot after any store
// mutation. Callbacks run outside the store lock; they may call back
// into the store but should not block.
type Subscriber func(session.Snapshot)

// Store is the session store.
type Store struct {
	client *session.Client
	logger *slog.Logger
	met    *metrics.Metrics
	aud    *audit.Logger

	mu          sync.Mutex
	state       State
	snap        session.Snapshot
	generation  uint64
	inflight    int
	subscribers map[uint64]Subscriber
	nextSub     uint64

	watcher *credstore.Watcher
}

// Option configures the Store.
type Option func(*Store)

// WithMetrics attaches engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.met = m }
}

// WithAudit attaches an audit logger.
func WithAudit(a *audit.Logger) Option {
	return func(s *Store) { s.aud = a }
}

// New creates a session store over the client's injected
// implementations. Call Start to begin credential watching and Close
// to stop it.
func New(client *session.Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		logger:      client.Logger(),
		met:         metrics.New(false),
		snap:        session.EmptySnapshot(),
		subscribers: make(map[uint64]Subscriber),
	}
	for _, o := range opts {
		o(s)
	}
	s.watcher = credstore.NewWatcher(client.Credentials(), client.Config().PollInterval, s.onCredentialAppear)
	return s
}

// Start begins polling for out-of-band credential appearance.
func (s *Store) Start() {
	s.watcher.Start()
}

// Close stops the credential watcher.
func (s *Store) Close() error {
	s.watcher.Stop()
	return nil
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the current session snapshot.
func (s *Store) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether a hydrated snapshot is held.
func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// Subscribe registers fn to be called after every store mutation. The
// returned function unsubscribes it.
func (s *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Login exchanges credentials for a token, stores it, and hydrates the
// snapshot with one context fetch before returning. The caller never
// observes an authenticated store with an unhydrated snapshot.
//
// Rejected credentials come back as *session.AuthError with the store
// untouched. A failed hydration clears the stored credential and leaves
// the store unauthenticated.
func (s *Store) Login(ctx context.Context, email, password string) error {
	auth := s.client.Auth()
	if auth == nil {
		return fmt.Errorf("session/store: no auth backend configured")
	}

	token, err := auth.ExchangeCredentials(ctx, email, password)
	if err != nil {
		s.met.RecordLogin("rejected")
		s.audit(audit.Event{Action: audit.ActionLogin, Result: audit.ResultFailure, Error: err.Error()})
		return err
	}

	s.client.Credentials().Set(token)

	// The login endpoint may return tenant hints inline, but the
	// context endpoint is canonical; hydrate from it unconditionally.
	if _, err := s.Refresh(ctx); err != nil {
		s.met.RecordLogin("fetch_failed")
		s.audit(audit.Event{Action: audit.ActionLogin, Result: audit.ResultFailure, Error: err.Error()})
		s.resetToUnauthenticated(true)
		return fmt.Errorf("session/store: login hydration failed: %w", err)
	}
	if !s.IsAuthenticated() {
		s.met.RecordLogin("fetch_failed")
		return fmt.Errorf("session/store: login hydration superseded")
	}

	s.met.RecordLogin("success")
	s.audit(audit.Event{Action: audit.ActionLogin, Result: audit.ResultSuccess, ActorID: s.Snapshot().UserID()})
	return nil
}

// Refresh performs one context fetch and applies the result if no newer
// fetch superseded it. It returns true when the result was applied and
// false when it was discarded as stale.
//
// Failure handling: an unauthorized result clears the credential and
// resets the store; a transient failure (network, malformed) leaves the
// previous snapshot untouched.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	token := s.client.Credentials().Get()
	if token == "" {
		s.resetToUnauthenticated(false)
		return false, nil
	}

	gen := s.beginFetch()
	start := time.Now()

	payload, err := s.client.Fetcher().FetchContext(ctx, token)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		s.endFetch()
		return false, s.handleFetchFailure(err, elapsed)
	}

	applied := s.applyPayload(gen, payload)
	s.endFetch()
	if !applied {
		s.met.RecordFetch("stale", elapsed)
		s.met.RecordStaleDiscard()
		s.audit(audit.Event{Action: audit.ActionRefresh, Result: audit.ResultStale})
		return false, nil
	}

	s.met.RecordFetch("ok", elapsed)
	return true, nil
}

// Logout revokes the session server-side (best effort), then
// unconditionally clears the credential, resets the snapshot to the
// empty constant, flushes the cross-cutting request cache, and asks the
// navigator for a full navigation to the landing route. The full
// navigation is deliberate: it guarantees nothing anywhere retains
// stale per-tenant subscriptions from the previous identity.
func (s *Store) Logout(ctx context.Context) {
	token := s.client.Credentials().Get()
	actor := s.Snapshot().UserID()

	if auth := s.client.Auth(); auth != nil && token != "" {
		if err := auth.Invalidate(ctx, token); err != nil {
			s.logger.Warn("server-side session invalidation failed", "error", err)
		}
	}

	s.resetToUnauthenticated(true)

	if cache := s.client.Cache(); cache != nil {
		if err := cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("request cache flush failed on logout", "error", err)
		}
	}

	s.audit(audit.Event{Action: audit.ActionLogout, Result: audit.ResultSuccess, ActorID: actor})

	if nav := s.client.Navigator(); nav != nil {
		nav.Navigate(s.client.Config().Routes.Landing)
	}
}

// onCredentialAppear runs on the watcher goroutine when a token shows
// up in the slot while this store did not put it there.
func (s *Store) onCredentialAppear(token string) {
	if credstore.Expired(token, time.Now()) {
		s.logger.Debug("ignoring expired credential from watcher")
		return
	}

	s.mu.Lock()
	idle := s.state == Unauthenticated
	s.mu.Unlock()
	if !idle {
		return
	}

	s.logger.Debug("credential appeared out of band, refreshing")
	go func() {
		// Background check: failures are logged, never surfaced.
		if _, err := s.Refresh(context.Background()); err != nil {
			s.logger.Warn("background refresh failed", "error", err)
		}
	}()
}

func (s *Store) beginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	gen := s.generation
	s.inflight++
	s.snap.Loading = true
	if s.state == Unauthenticated {
		s.state = Loading
		s.met.SetSessionState(metrics.StateLoading)
	}
	return gen
}

func (s *Store) endFetch() {
	s.mu.Lock()
	s.inflight--
	if s.inflight <= 0 {
		s.inflight = 0
		s.snap.Loading = false
	}
	subs, snap := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs, snap)
}

// applyPayload replaces the snapshot atomically if gen is still the
// newest initiated fetch. Stale results are discarded whole; the
// snapshot is never partially updated.
func (s *Store) applyPayload(gen uint64, payload *session.ContextPayload) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}

	user := payload.User
	s.snap = session.Snapshot{
		User:          &user,
		Memberships:   append([]session.TenantMembership(nil), payload.Memberships...),
		Impersonation: payload.Impersonation,
		Ready:         true,
		Loading:       s.inflight > 1, // this fetch has not ended yet
	}
	s.state = Authenticated
	s.met.SetSessionState(metrics.StateAuthenticated)
	subs, snap := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
	return true
}

func (s *Store) handleFetchFailure(err error, elapsed float64) error {
	switch {
	case session.IsUnauthorized(err):
		s.met.RecordFetch("unauthorized", elapsed)
		s.logger.Info("token rejected by origin, resetting session")
		s.resetToUnauthenticated(true)
	case session.IsTransientFetch(err):
		s.met.RecordFetch("transient", elapsed)
		s.mu.Lock()
		loading := s.state == Loading
		s.mu.Unlock()
		if loading {
			// First hydration of the cycle failed: there is no previous
			// snapshot to retain, so fall back to unauthenticated.
			s.resetToUnauthenticated(true)
		}
	default:
		s.met.RecordFetch("unknown", elapsed)
	}
	return err
}

// resetToUnauthenticated resets the store to the empty snapshot and,
// when clearCredential is set, removes the token from the slot. The
// generation is bumped so any in-flight fetch result is discarded.
func (s *Store) resetToUnauthenticated(clearCredential bool) {
	if clearCredential {
		s.client.Credentials().Clear()
	}

	s.mu.Lock()
	s.generation++
	s.snap = session.EmptySnapshot()
	s.state = Unauthenticated
	s.met.SetSessionState(metrics.StateUnauthenticated)
	subs, snap := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

func (s *Store) snapshotLocked() session.Snapshot {
	snap := s.snap
	snap.Memberships = append([]session.TenantMembership(nil), s.snap.Memberships...)
	return snap
}

func (s *Store) subscribersLocked() ([]Subscriber, session.Snapshot) {
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs, s.snapshotLocked()
}

func notify(subs []Subscriber, snap session.Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Store) audit(e audit.Event) {
	if s.aud != nil {
		s.aud.Log(e)
	}
}
