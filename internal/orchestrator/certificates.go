package orchestrator

import (
	"context"

	"github.com/nubi-io/nubi/internal/acme"
	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/render"
)

// hostsReferencingCert returns every host currently bound to certID.
func (o *Orchestrator) hostsReferencingCert(certID string) []*model.ProxyHost {
	var bound []*model.ProxyHost
	for _, h := range o.Store.ListHosts() {
		if h.CertificateID == certID {
			bound = append(bound, h)
		}
	}
	return bound
}

// RenewCertificate obtains a fresh bundle for an existing acme-issued
// certificate and, since a renewed bundle's paths may change, re-renders
// every host bound to it before running the barrier — a renewal that would
// invalidate a bound host's fragment is rejected, its fragments are rolled
// back, and the store keeps the old certificate record. The new cert/key
// files that agent.Renew has already written under the same id stay on
// disk.
func (o *Orchestrator) RenewCertificate(ctx context.Context, agent *acme.Agent, certID string) (*model.Certificate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	existing, ok := o.Store.GetCertificate(certID)
	if !ok {
		return nil, apierr.NotFound("certificate", certID)
	}

	renewed, err := agent.Renew(o.Reconciler, existing, acme.Request{AutoRenew: existing.AutoRenew})
	if err != nil {
		return nil, apierr.Acme(err)
	}

	bound := o.hostsReferencingCert(certID)
	type staged struct {
		name    string
		prev    []byte
		enabled bool
	}
	var stagedFragments []staged

	rollback := func() error {
		for _, s := range stagedFragments {
			if s.prev == nil {
				if err := o.Reconciler.Withdraw(s.name); err != nil {
					return err
				}
				continue
			}
			if err := o.Reconciler.Materialize(s.name, s.prev, s.enabled); err != nil {
				return err
			}
		}
		return nil
	}

	for _, h := range bound {
		fragment, err := render.Host(h, renewed)
		if err != nil {
			rollback()
			return nil, err
		}
		name := render.HostFilename(h.Domain)
		prevBytes, _ := o.Reconciler.ReadAvailable(name)
		prevEnabled := o.Reconciler.IsEnabled(name)
		if err := o.Reconciler.Materialize(name, fragment, h.Enabled); err != nil {
			rollback()
			return nil, err
		}
		stagedFragments = append(stagedFragments, staged{name: name, prev: prevBytes, enabled: prevEnabled})
	}

	commit := func() error {
		if _, err := o.Store.CommitCertificate(renewed); err != nil {
			return err
		}
		o.recordAudit(model.AuditRenew, "certificate", certID, existing, renewed)
		return nil
	}

	if err := o.runBarrier(ctx, rollback, commit); err != nil {
		if apierr.Is(err, apierr.KindReloadFailed) {
			return renewed, err
		}
		return nil, err
	}
	return renewed, nil
}

// ApplyCertificateToHosts binds certID to every host in hostIDs, re-renders
// each affected host's fragment, and runs a single reload barrier across
// the whole batch: either every host's new binding commits together, or
// none does. This is the bulk side of the certificate-to-host relation —
// the one-at-a-time path remains UpdateHost's CertificateID patch.
func (o *Orchestrator) ApplyCertificateToHosts(ctx context.Context, certID string, hostIDs []string) ([]*model.ProxyHost, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.Store.GetCertificate(certID); !ok {
		return nil, apierr.NotFound("certificate", certID)
	}

	var rollbacks []func() error
	var prepared []*model.ProxyHost

	combinedRollback := func() error {
		for _, rb := range rollbacks {
			if err := rb(); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range hostIDs {
		oldHost, next, err := o.Store.PrepareUpdateHost(id, func(h *model.ProxyHost) {
			h.CertificateID = certID
			h.TLSEnabled = true
		})
		if err != nil {
			combinedRollback()
			return nil, err
		}
		rollback, err := o.materializeHost(oldHost, next)
		if err != nil {
			combinedRollback()
			return nil, err
		}
		rollbacks = append(rollbacks, rollback)
		prepared = append(prepared, next)
	}

	commit := func() error {
		for _, h := range prepared {
			if err := o.Store.CommitHost(h); err != nil {
				return err
			}
			o.recordAudit(model.AuditUpdate, "proxy_host", h.ID, nil, h)
		}
		return nil
	}

	if err := o.runBarrier(ctx, combinedRollback, commit); err != nil {
		if apierr.Is(err, apierr.KindReloadFailed) {
			return prepared, err
		}
		return nil, err
	}
	return prepared, nil
}
