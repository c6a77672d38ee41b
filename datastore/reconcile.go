package datastore

import (
	"context"
	"fmt"
	"sort"

	"projectflow/assistance"
	"projectflow/gateway"
	"projectflow/profile"
	"projectflow/project"
)

// subscribeAll attaches the three per-table change feeds. A client session
// subscribes too; foreign rows are filtered out in apply.
func (s *Store) subscribeAll(ctx context.Context, gen uint64) {
	tables := []string{gateway.TableProjects, gateway.TableProfiles, gateway.TableAssistance}
	subs := make([]gateway.Subscription, 0, len(tables))
	for _, table := range tables {
		sub, err := s.rt.Subscribe(ctx, table, s.Apply)
		if err != nil {
			s.onError(fmt.Errorf("datastore: subscribe %s: %w", table, err))
			continue
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		return
	}
	s.unsubscribeLocked()
	s.subs = subs
}

// Apply reconciles one remote change event into the cached collections.
// Inserts and updates both resolve to replace-by-id followed by a re-sort,
// which keeps the newest-first invariant and makes duplicate delivery
// harmless; deleting an absent id is a no-op.
func (s *Store) Apply(ev gateway.ChangeEvent) {
	switch ev.Table {
	case gateway.TableProjects:
		s.applyProject(ev)
	case gateway.TableProfiles:
		s.applyProfile(ev)
	case gateway.TableAssistance:
		s.applyRequest(ev)
	}
}

func (s *Store) applyProject(ev gateway.ChangeEvent) {
	if ev.Kind == gateway.ChangeDelete {
		s.mu.Lock()
		s.projects = removeProject(s.projects, rowID(ev.Old))
		s.mu.Unlock()
		return
	}
	p, err := project.FromRow(ev.New)
	if err != nil {
		s.onError(fmt.Errorf("datastore: project event: %w", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visibleLocked(p.ClientUID) {
		return
	}
	s.projects = upsertProject(s.projects, p)
	s.sortProjectsLocked()
}

func (s *Store) applyRequest(ev gateway.ChangeEvent) {
	if ev.Kind == gateway.ChangeDelete {
		s.mu.Lock()
		s.requests = removeRequest(s.requests, rowID(ev.Old))
		s.mu.Unlock()
		return
	}
	r, err := assistance.FromRow(ev.New)
	if err != nil {
		s.onError(fmt.Errorf("datastore: assistance event: %w", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visibleLocked(r.ClientUID) {
		return
	}
	s.requests = upsertRequest(s.requests, r)
	s.sortRequestsLocked()
}

func (s *Store) applyProfile(ev gateway.ChangeEvent) {
	if ev.Kind == gateway.ChangeDelete {
		id := rowID(ev.Old)
		s.mu.Lock()
		s.clients = removeUser(s.clients, id)
		s.admins = removeUser(s.admins, id)
		s.mu.Unlock()
		return
	}
	u, err := profile.FromRow(ev.New)
	if err != nil {
		s.onError(fmt.Errorf("datastore: profile event: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Roles are immutable after creation. An update claiming a different
	// role than the cached copy is rejected rather than moved between
	// collections.
	if prev, ok := findUser(s.clients, u.ID); ok && prev.Role != u.Role {
		s.onError(fmt.Errorf("datastore: ignoring role change for profile %s", u.ID))
		return
	}
	if prev, ok := findUser(s.admins, u.ID); ok && prev.Role != u.Role {
		s.onError(fmt.Errorf("datastore: ignoring role change for profile %s", u.ID))
		return
	}

	if s.profile != nil && s.profile.ID == u.ID {
		if u.Role == s.profile.Role {
			copied := u
			s.profile = &copied
		}
	}

	// A client session only tracks its own profile; the split collections
	// are an admin view.
	if s.profile == nil || s.profile.Role != profile.RoleAdmin {
		return
	}
	if u.Role == profile.RoleAdmin {
		s.admins = upsertUser(s.admins, u)
	} else {
		s.clients = upsertUser(s.clients, u)
	}
}

// visibleLocked reports whether a row owned by ownerID belongs in this
// session's view. Admin sessions see everything; client sessions only their
// own rows.
func (s *Store) visibleLocked(ownerID string) bool {
	if s.profile == nil {
		return false
	}
	if s.profile.Role == profile.RoleAdmin {
		return true
	}
	return s.profile.ID == ownerID
}

func (s *Store) sortProjectsLocked() {
	sort.SliceStable(s.projects, func(i, j int) bool {
		return s.projects[i].CreatedAt.After(s.projects[j].CreatedAt)
	})
}

func (s *Store) sortRequestsLocked() {
	sort.SliceStable(s.requests, func(i, j int) bool {
		return s.requests[i].CreatedAt.After(s.requests[j].CreatedAt)
	})
}

func rowID(row gateway.Row) string {
	id, _ := row["id"].(string)
	return id
}

func upsertProject(list []project.Project, p project.Project) []project.Project {
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p
			return list
		}
	}
	return append(list, p)
}

func removeProject(list []project.Project, id string) []project.Project {
	if id == "" {
		return list
	}
	out := list[:0]
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func upsertRequest(list []assistance.Request, r assistance.Request) []assistance.Request {
	for i := range list {
		if list[i].ID == r.ID {
			list[i] = r
			return list
		}
	}
	return append(list, r)
}

func removeRequest(list []assistance.Request, id string) []assistance.Request {
	if id == "" {
		return list
	}
	out := list[:0]
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func upsertUser(list []profile.User, u profile.User) []profile.User {
	for i := range list {
		if list[i].ID == u.ID {
			list[i] = u
			return list
		}
	}
	return append(list, u)
}

func removeUser(list []profile.User, id string) []profile.User {
	if id == "" {
		return list
	}
	out := list[:0]
	for _, u := range list {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

func findUser(list []profile.User, id string) (profile.User, bool) {
	for _, u := range list {
		if u.ID == id {
			return u, true
		}
	}
	return profile.User{}, false
}
