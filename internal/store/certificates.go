package store

import (
	"fmt"
	"time"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
)

// GetCertificate returns a copy of the certificate with id, if present.
func (s *Store) GetCertificate(id string) (*model.Certificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certs[id]
	if !ok {
		return nil, false
	}
	return cloneCert(c), true
}

// ListCertificates returns copies of every certificate.
func (s *Store) ListCertificates() []*model.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Certificate, 0, len(s.certs))
	for _, c := range s.certs {
		out = append(out, cloneCert(c))
	}
	return out
}

// CommitCertificate inserts or replaces a certificate that was issued,
// renewed, or uploaded, assigning an id and timestamps on first insert.
func (s *Store) CommitCertificate(c *model.Certificate) (*model.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	n := cloneCert(c)
	if n.ID == "" {
		n.ID = s.nextID()
		n.CreatedAt = now
	} else if existing, ok := s.certs[n.ID]; ok {
		n.CreatedAt = existing.CreatedAt
	} else {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	s.certs[n.ID] = n
	if err := s.persistCertsLocked(); err != nil {
		return nil, err
	}
	return cloneCert(n), nil
}

// hostReferencesCertLocked reports whether any host still binds certID.
func (s *Store) hostReferencesCertLocked(certID string) bool {
	for _, h := range s.hosts {
		if h.CertificateID == certID {
			return true
		}
	}
	return false
}

// DeleteCertificate removes a certificate, refusing if any host still
// references it by id.
func (s *Store) DeleteCertificate(id string) (*model.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.certs[id]
	if !ok {
		return nil, apierr.NotFound("certificate", id)
	}
	if s.hostReferencesCertLocked(id) {
		return nil, apierr.Conflict(fmt.Sprintf("certificate %q is still bound to one or more hosts", id))
	}
	deleted := cloneCert(c)
	delete(s.certs, id)
	if err := s.persistCertsLocked(); err != nil {
		return nil, err
	}
	return deleted, nil
}

// RenewalScan returns certificates due for ACME renewal: auto-renew,
// acme-issued, and within thresholdDays of expiry.
func (s *Store) RenewalScan(now time.Time, thresholdDays int) []*model.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*model.Certificate
	for _, c := range s.certs {
		if !c.AutoRenew || c.Provenance != model.ProvenanceACMEIssued {
			continue
		}
		if c.DaysUntilExpiry(now) < thresholdDays {
			due = append(due, cloneCert(c))
		}
	}
	return due
}
