// Package store is the State Store: the single source of truth for
// persisted entities. It exposes prepare/commit pairs rather than plain
// CRUD so that the Orchestrator can validate and stage a change, drive it
// through the Config Renderer, Filesystem Reconciler and Nginx Supervisor,
// and only commit the in-memory map (and persist it) after nginx accepts
// the generated fragment. Read paths (Get/List) take only a read lock and
// never block on a mutation in flight, since a mutation's slow steps
// (rendering, reconciling, invoking nginx) happen outside the write lock.
package store

import (
	"log/slog"
	"sync"

	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/reconcile"
)

const (
	hostsFile        = "proxy_hosts.json"
	certsFile        = "certificates.json"
	tagsFile         = "tags.json"
	defaultRouteFile = "default_route_state.json"
	maintenanceFile  = "maintenance_backup_state.json"
)

// Store holds the in-memory authoritative maps and the Reconciler used to
// persist them as JSON.
type Store struct {
	mu sync.RWMutex

	hosts map[string]*model.ProxyHost
	certs map[string]*model.Certificate
	tags  map[string]*model.Tag

	defaultRoute *model.DefaultRoute
	maintenance  *model.Maintenance

	r *reconcile.Reconciler

	nextID func() string
}

// New loads persisted state (if any) from the Reconciler's data directory.
// A missing or corrupt file is treated as "start empty" with a logged
// warning, never a fatal error.
func New(r *reconcile.Reconciler, idGen func() string) (*Store, error) {
	s := &Store{
		hosts:  make(map[string]*model.ProxyHost),
		certs:  make(map[string]*model.Certificate),
		tags:   make(map[string]*model.Tag),
		r:      r,
		nextID: idGen,
	}

	var hostList []*model.ProxyHost
	if ok, _ := r.LoadJSON(hostsFile, &hostList); !ok {
		slog.Warn("proxy_hosts.json missing or unreadable; starting empty")
	}
	for _, h := range hostList {
		s.hosts[h.ID] = h
	}

	var certList []*model.Certificate
	if ok, _ := r.LoadJSON(certsFile, &certList); !ok {
		slog.Warn("certificates.json missing or unreadable; starting empty")
	}
	for _, c := range certList {
		s.certs[c.ID] = c
	}

	var tagList []*model.Tag
	if ok, _ := r.LoadJSON(tagsFile, &tagList); !ok {
		slog.Warn("tags.json missing or unreadable; starting empty")
	}
	for _, t := range tagList {
		s.tags[t.ID] = t
	}

	var dr model.DefaultRoute
	if ok, _ := r.LoadJSON(defaultRouteFile, &dr); !ok {
		slog.Warn("default_route_state.json missing or unreadable; starting with defaults")
		dr = model.DefaultRoute{Enabled: true, Mode: model.DefaultModeNginxDefault}
	}
	s.defaultRoute = &dr

	var m model.Maintenance
	if ok, _ := r.LoadJSON(maintenanceFile, &m); !ok {
		slog.Warn("maintenance_backup_state.json missing or unreadable; starting empty")
	}
	s.maintenance = &m

	return s, nil
}

func (s *Store) persistHostsLocked() error {
	list := make([]*model.ProxyHost, 0, len(s.hosts))
	for _, h := range s.hosts {
		list = append(list, h)
	}
	return s.r.SaveJSON(hostsFile, list)
}

func (s *Store) persistCertsLocked() error {
	list := make([]*model.Certificate, 0, len(s.certs))
	for _, c := range s.certs {
		list = append(list, c)
	}
	return s.r.SaveJSON(certsFile, list)
}

func (s *Store) persistTagsLocked() error {
	list := make([]*model.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		list = append(list, t)
	}
	return s.r.SaveJSON(tagsFile, list)
}

func (s *Store) persistDefaultRouteLocked() error {
	return s.r.SaveJSON(defaultRouteFile, s.defaultRoute)
}

func (s *Store) persistMaintenanceLocked() error {
	return s.r.SaveJSON(maintenanceFile, s.maintenance)
}

func cloneHost(h *model.ProxyHost) *model.ProxyHost {
	c := *h
	c.Backends = append([]model.Backend(nil), h.Backends...)
	c.TagIDs = append([]string(nil), h.TagIDs...)
	return &c
}

func cloneCert(c *model.Certificate) *model.Certificate {
	n := *c
	n.Domains = append([]string(nil), c.Domains...)
	n.TagIDs = append([]string(nil), c.TagIDs...)
	return &n
}
