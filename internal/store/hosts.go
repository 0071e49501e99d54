package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
)

// GetHost returns a copy of the host with id, if present.
func (s *Store) GetHost(id string) (*model.ProxyHost, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hosts[id]
	if !ok {
		return nil, false
	}
	return cloneHost(h), true
}

// GetHostByDomain returns a copy of the host bound to domain, if present.
func (s *Store) GetHostByDomain(domain string) (*model.ProxyHost, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.hosts {
		if strings.EqualFold(h.Domain, domain) {
			return cloneHost(h), true
		}
	}
	return nil, false
}

// ListHosts returns copies of every host, in no particular order.
func (s *Store) ListHosts() []*model.ProxyHost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ProxyHost, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, cloneHost(h))
	}
	return out
}

func (s *Store) domainTakenLocked(domain, excludeID string) bool {
	for id, h := range s.hosts {
		if id == excludeID {
			continue
		}
		if strings.EqualFold(h.Domain, domain) {
			return true
		}
	}
	return false
}

func (s *Store) resolveCertLocked(certID string) error {
	if certID == "" {
		return nil
	}
	if _, ok := s.certs[certID]; !ok {
		return apierr.Validation(fmt.Sprintf("certificateId %q does not reference a known certificate", certID))
	}
	return nil
}

// PrepareCreateHost validates draft against the current map and returns a
// fully-formed entity (id and timestamps assigned) that has NOT yet been
// committed. The Orchestrator renders and reconciles this value, runs it
// through the Nginx Supervisor, and only then calls CommitHost.
func (s *Store) PrepareCreateHost(draft *model.ProxyHost) (*model.ProxyHost, error) {
	if err := model.ValidateHost(draft); err != nil {
		return nil, apierr.Validation(err.Error())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.domainTakenLocked(draft.Domain, "") {
		return nil, apierr.Conflict(fmt.Sprintf("domain %q is already in use", draft.Domain))
	}
	if err := s.resolveCertLocked(draft.CertificateID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	h := cloneHost(draft)
	h.ID = s.nextID()
	h.CreatedAt = now
	h.UpdatedAt = now
	return h, nil
}

// PrepareUpdateHost applies patch to a clone of the existing host, validates
// the result, and returns (old, new) without committing either.
func (s *Store) PrepareUpdateHost(id string, patch func(*model.ProxyHost)) (old, updated *model.ProxyHost, err error) {
	s.mu.RLock()
	existing, ok := s.hosts[id]
	if !ok {
		s.mu.RUnlock()
		return nil, nil, apierr.NotFound("proxy host", id)
	}
	oldCopy := cloneHost(existing)
	next := cloneHost(existing)
	s.mu.RUnlock()

	patch(next)
	if err := model.ValidateHost(next); err != nil {
		return nil, nil, apierr.Validation(err.Error())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.domainTakenLocked(next.Domain, id) {
		return nil, nil, apierr.Conflict(fmt.Sprintf("domain %q is already in use", next.Domain))
	}
	if err := s.resolveCertLocked(next.CertificateID); err != nil {
		return nil, nil, err
	}

	next.ID = id
	next.CreatedAt = oldCopy.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	return oldCopy, next, nil
}

// CommitHost inserts or replaces h in the map and persists the host list.
// Called only after the Nginx Supervisor has accepted the rendered
// configuration for h.
func (s *Store) CommitHost(h *model.ProxyHost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[h.ID] = cloneHost(h)
	return s.persistHostsLocked()
}

// PrepareDeleteHost returns the current host for id without removing it.
func (s *Store) PrepareDeleteHost(id string) (*model.ProxyHost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hosts[id]
	if !ok {
		return nil, apierr.NotFound("proxy host", id)
	}
	return cloneHost(h), nil
}

// CommitDeleteHost removes id from the map and persists the host list.
func (s *Store) CommitDeleteHost(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hosts, id)
	return s.persistHostsLocked()
}

// BulkTagHosts adds or removes tagID from every host in ids, idempotently.
// Unknown host ids are skipped rather than aborting the whole batch.
func (s *Store) BulkTagHosts(ids []string, tagID string, add bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[tagID]; !ok {
		return apierr.NotFound("tag", tagID)
	}

	changed := false
	for _, id := range ids {
		h, ok := s.hosts[id]
		if !ok {
			continue
		}
		if add {
			if !containsStr(h.TagIDs, tagID) {
				h.TagIDs = append(h.TagIDs, tagID)
				h.UpdatedAt = time.Now().UTC()
				changed = true
			}
		} else {
			if containsStr(h.TagIDs, tagID) {
				h.TagIDs = removeStr(h.TagIDs, tagID)
				h.UpdatedAt = time.Now().UTC()
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}
	return s.persistHostsLocked()
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeStr(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
