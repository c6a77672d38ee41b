// Package datastore keeps a session-scoped, role-scoped in-memory view of
// the remote portal data consistent under local mutations and remote
// realtime change events.
//
// The store resolves the authenticated session into a role-tagged profile,
// bulk-loads the record sets that role may see, then subscribes to per-table
// change feeds and reconciles each incoming event into its cached
// collection. Mutations write remotely first and update the cache
// optimistically; the realtime echo converges both through the same
// replace-by-id rule.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"projectflow/assistance"
	"projectflow/gateway"
	"projectflow/profile"
	"projectflow/project"
	"projectflow/storage"
)

var (
	// ErrNoProfile signals a mutation that requires a resolved profile.
	ErrNoProfile = errors.New("datastore: no resolved profile")
	// ErrProfileNotFound signals a session whose subject has no profile row.
	ErrProfileNotFound = errors.New("datastore: profile not found")
	// ErrUnknownProject signals an operation against a project id absent
	// from the cached collection.
	ErrUnknownProject = errors.New("datastore: unknown project")
	// ErrNotProjectOwner signals an assistance request against a project the
	// requester does not own.
	ErrNotProjectOwner = errors.New("datastore: not the project owner")
)

// Phase is the session-resolution state the store is in.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseResolvingProfile
	PhaseReady
)

// Store owns the cached collections and every operation against them.
// Construct one per session, Start it, and Stop it on sign-out or shutdown.
type Store struct {
	db      gateway.Relational
	rt      gateway.Realtime
	auth    gateway.Auth
	up      *storage.Uploader
	newID   func() string
	now     func() time.Time
	onError func(error)

	mu       sync.RWMutex
	phase    Phase
	loading  bool
	gen      uint64
	profile  *profile.User
	clients  []profile.User
	admins   []profile.User
	projects []project.Project
	requests []assistance.Request
	cleanup  []CleanupTask
	subs     []gateway.Subscription
	authSub  gateway.Subscription

	wg sync.WaitGroup
}

// New builds a Store over the given gateway surfaces.
func New(db gateway.Relational, rt gateway.Realtime, auth gateway.Auth, up *storage.Uploader) *Store {
	return &Store{
		db:      db,
		rt:      rt,
		auth:    auth,
		up:      up,
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
		onError: func(error) {},
		phase:   PhaseUnauthenticated,
	}
}

// WithIDGenerator overrides the row id generator.
func (s *Store) WithIDGenerator(gen func() string) *Store {
	s.newID = gen
	return s
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithErrorHook installs a hook for errors that have no caller to propagate
// to: bulk-load failures and malformed realtime events. The binary typically
// logs them.
func (s *Store) WithErrorHook(fn func(error)) *Store {
	if fn != nil {
		s.onError = fn
	}
	return s
}

// Start wires the store to the auth session source and kicks off resolution
// of the current session, if any. Every later auth-state change supersedes
// whatever resolution is still in flight.
func (s *Store) Start(ctx context.Context) error {
	s.authSub = s.auth.OnChange(func(sess *gateway.Session) {
		s.beginResolve(ctx, sess)
	})
	sess, err := s.auth.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("datastore: current session: %w", err)
	}
	s.beginResolve(ctx, sess)
	return nil
}

// Stop detaches from the auth source and the realtime feeds and waits for
// any in-flight resolution to finish.
func (s *Store) Stop() {
	s.mu.Lock()
	s.gen++
	if s.authSub != nil {
		s.authSub.Unsubscribe()
		s.authSub = nil
	}
	s.unsubscribeLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// beginResolve advances the generation counter so stale fetches cannot
// commit, then either clears state (signed out) or resolves the profile in
// the background.
func (s *Store) beginResolve(ctx context.Context, sess *gateway.Session) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if sess == nil {
		s.clearLocked()
		s.phase = PhaseUnauthenticated
		s.loading = false
		s.unsubscribeLocked()
		s.mu.Unlock()
		return
	}
	s.phase = PhaseResolvingProfile
	s.loading = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resolve(ctx, *sess, gen)
	}()
}

func (s *Store) resolve(ctx context.Context, sess gateway.Session, gen uint64) {
	prof, err := s.fetchProfile(ctx, sess.ID)
	if err != nil {
		// A valid auth session without a usable profile would wedge the
		// portal on the loading screen, so the session is force-terminated.
		if s.currentGen() == gen {
			if serr := s.auth.SignOut(ctx); serr != nil {
				s.onError(fmt.Errorf("datastore: sign out after failed profile fetch: %w", serr))
			}
			s.failResolve(gen)
		}
		s.onError(fmt.Errorf("datastore: resolve profile %s: %w", sess.ID, err))
		return
	}

	projects, users, requests, err := s.bulkLoad(ctx, prof)
	if err != nil {
		// Collections stay empty rather than half-populated; the profile
		// itself is usable, so the store still becomes Ready.
		s.commit(gen, prof, nil, nil, nil)
		s.onError(fmt.Errorf("datastore: bulk load: %w", err))
		return
	}

	if !s.commit(gen, prof, projects, users, requests) {
		return
	}
	s.subscribeAll(ctx, gen)
}

func (s *Store) fetchProfile(ctx context.Context, id string) (profile.User, error) {
	rows, err := s.db.Select(ctx, gateway.TableProfiles, gateway.Eq("id", id))
	if err != nil {
		return profile.User{}, err
	}
	if len(rows) == 0 {
		return profile.User{}, ErrProfileNotFound
	}
	return profile.FromRow(rows[0])
}

// bulkLoad fetches the role-scoped record sets in parallel. Any single
// failure aborts the whole batch.
func (s *Store) bulkLoad(ctx context.Context, prof profile.User) ([]project.Project, []profile.User, []assistance.Request, error) {
	var (
		projects []project.Project
		users    []profile.User
		requests []assistance.Request
	)

	g, ctx := errgroup.WithContext(ctx)
	if prof.Role == profile.RoleAdmin {
		g.Go(func() error {
			var err error
			projects, err = s.loadProjects(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			users, err = s.loadProfiles(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			requests, err = s.loadRequests(ctx)
			return err
		})
	} else {
		g.Go(func() error {
			var err error
			projects, err = s.loadProjects(ctx, gateway.Eq("clientuid", prof.ID))
			return err
		})
		g.Go(func() error {
			var err error
			requests, err = s.loadRequests(ctx, gateway.Eq("clientUid", prof.ID))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return projects, users, requests, nil
}

func (s *Store) loadProjects(ctx context.Context, filters ...gateway.Filter) ([]project.Project, error) {
	rows, err := s.db.Select(ctx, gateway.TableProjects, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		p, err := project.FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) loadProfiles(ctx context.Context, filters ...gateway.Filter) ([]profile.User, error) {
	rows, err := s.db.Select(ctx, gateway.TableProfiles, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]profile.User, 0, len(rows))
	for _, row := range rows {
		u, err := profile.FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) loadRequests(ctx context.Context, filters ...gateway.Filter) ([]assistance.Request, error) {
	rows, err := s.db.Select(ctx, gateway.TableAssistance, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]assistance.Request, 0, len(rows))
	for _, row := range rows {
		r, err := assistance.FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// commit replaces the collections wholesale with the freshly loaded
// baseline. It refuses to commit when a newer resolution has started since.
func (s *Store) commit(gen uint64, prof profile.User, projects []project.Project, users []profile.User, requests []assistance.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}

	s.profile = &prof
	s.projects = projects
	s.requests = requests
	s.clients = nil
	s.admins = nil
	for _, u := range users {
		if u.Role == profile.RoleAdmin {
			s.admins = append(s.admins, u)
		} else {
			s.clients = append(s.clients, u)
		}
	}
	s.sortProjectsLocked()
	s.sortRequestsLocked()
	s.phase = PhaseReady
	s.loading = false
	return true
}

func (s *Store) failResolve(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.clearLocked()
	s.phase = PhaseUnauthenticated
	s.loading = false
	s.unsubscribeLocked()
}

func (s *Store) clearLocked() {
	s.profile = nil
	s.clients = nil
	s.admins = nil
	s.projects = nil
	s.requests = nil
}

func (s *Store) unsubscribeLocked() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *Store) currentGen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}
