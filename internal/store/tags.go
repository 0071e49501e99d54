package store

import (
	"fmt"
	"strings"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
)

// ListTags returns every tag.
func (s *Store) ListTags() []*model.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		c := *t
		out = append(out, &c)
	}
	return out
}

func (s *Store) tagNameTakenLocked(name, excludeID string) bool {
	for id, t := range s.tags {
		if id == excludeID {
			continue
		}
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// CreateTag creates a tag with a unique name.
func (s *Store) CreateTag(name, color string) (*model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return nil, apierr.Validation("tag name must not be empty")
	}
	if s.tagNameTakenLocked(name, "") {
		return nil, apierr.Conflict(fmt.Sprintf("tag name %q is already in use", name))
	}

	t := &model.Tag{ID: s.nextID(), Name: name, Color: color}
	s.tags[t.ID] = t
	if err := s.persistTagsLocked(); err != nil {
		return nil, err
	}
	c := *t
	return &c, nil
}

// DeleteTag removes a tag and scrubs references to it from every host and
// certificate that carried it.
func (s *Store) DeleteTag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[id]; !ok {
		return apierr.NotFound("tag", id)
	}
	delete(s.tags, id)

	hostsChanged := false
	for _, h := range s.hosts {
		if containsStr(h.TagIDs, id) {
			h.TagIDs = removeStr(h.TagIDs, id)
			hostsChanged = true
		}
	}
	certsChanged := false
	for _, c := range s.certs {
		if containsStr(c.TagIDs, id) {
			c.TagIDs = removeStr(c.TagIDs, id)
			certsChanged = true
		}
	}

	if err := s.persistTagsLocked(); err != nil {
		return err
	}
	if hostsChanged {
		if err := s.persistHostsLocked(); err != nil {
			return err
		}
	}
	if certsChanged {
		if err := s.persistCertsLocked(); err != nil {
			return err
		}
	}
	return nil
}
