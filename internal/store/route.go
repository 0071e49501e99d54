package store

import "github.com/nubi-io/nubi/internal/model"

// GetDefaultRoute returns a copy of the singleton default route.
func (s *Store) GetDefaultRoute() *model.DefaultRoute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := *s.defaultRoute
	return &c
}

// CommitDefaultRoute replaces the singleton default route and persists it.
// The Orchestrator calls this only after the rendered fragment has passed
// nginx validation.
func (s *Store) CommitDefaultRoute(r *model.DefaultRoute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	s.defaultRoute = &c
	return s.persistDefaultRouteLocked()
}

// GetMaintenance returns a copy of the singleton maintenance state.
func (s *Store) GetMaintenance() *model.Maintenance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := *s.maintenance
	return &c
}

// CommitMaintenance replaces the singleton maintenance state and persists
// it. Enabling maintenance stashes the current default route in PriorRoute;
// disabling restores it as the default route (the caller is responsible for
// that restore via CommitDefaultRoute — this method only updates the
// maintenance record itself).
func (s *Store) CommitMaintenance(m *model.Maintenance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *m
	s.maintenance = &c
	return s.persistMaintenanceLocked()
}
