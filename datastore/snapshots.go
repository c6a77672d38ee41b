package datastore

import (
	"projectflow/assistance"
	"projectflow/profile"
	"projectflow/project"
)

// Phase returns the current session-resolution state.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Loading reports whether profile resolution or the initial bulk load is
// still in flight. Collections must not be trusted while it is true.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// UserProfile returns a copy of the resolved profile, or nil when
// unauthenticated.
func (s *Store) UserProfile() *profile.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	copied := *s.profile
	return &copied
}

// Clients returns a snapshot of the client profiles (admin sessions only).
func (s *Store) Clients() []profile.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]profile.User(nil), s.clients...)
}

// Admins returns a snapshot of the admin profiles (admin sessions only).
func (s *Store) Admins() []profile.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]profile.User(nil), s.admins...)
}

// Projects returns a snapshot of the cached projects, newest first.
func (s *Store) Projects() []project.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]project.Project(nil), s.projects...)
}

// AssistanceRequests returns a snapshot of the cached tickets, newest first.
func (s *Store) AssistanceRequests() []assistance.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]assistance.Request(nil), s.requests...)
}

// GetProjectsByClient returns the cached projects owned by the given client,
// preserving collection order.
func (s *Store) GetProjectsByClient(clientID string) []project.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []project.Project
	for _, p := range s.projects {
		if p.ClientUID == clientID {
			out = append(out, p)
		}
	}
	return out
}

// GetProjectByID returns the cached project with the given id.
func (s *Store) GetProjectByID(id string) (project.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return project.Project{}, false
}
