// Package orchestrator implements the reload barrier: the single place
// where a mutation's effect on the live nginx process is linearized.
// Every operation that must affect nginx flows through the sequence fixed
// by the core design: stage in the State Store, materialize via the
// Config Renderer and Filesystem Reconciler, validate with the Nginx
// Supervisor (rolling back on failure), reload (best effort), then commit
// and notify.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/nginx"
	"github.com/nubi-io/nubi/internal/reconcile"
	"github.com/nubi-io/nubi/internal/render"
	"github.com/nubi-io/nubi/internal/store"
)

// Notifier is implemented by the Telemetry Fanout. Orchestrator emits
// immediately on a committed mutation, bypassing the Fanout's periodic
// timer.
type Notifier interface {
	EmitNginxStatus(ctx context.Context)
	EmitMaintenanceMode(ctx context.Context)
}

// AuditRecorder is implemented by the supplementary audit trail.
type AuditRecorder interface {
	Record(entry model.AuditEntry) error
}

type noopNotifier struct{}

func (noopNotifier) EmitNginxStatus(context.Context)     {}
func (noopNotifier) EmitMaintenanceMode(context.Context) {}

type noopAudit struct{}

func (noopAudit) Record(model.AuditEntry) error { return nil }

// Orchestrator ties the State Store, Config Renderer, Filesystem
// Reconciler, and Nginx Supervisor into the reload-barrier sequence.
type Orchestrator struct {
	mu sync.Mutex

	Store      *store.Store
	Reconciler *reconcile.Reconciler
	Supervisor *nginx.Supervisor
	HTMLDir    string

	Notify Notifier
	Audit  AuditRecorder

	idGen func() string
}

// New wires an Orchestrator over its dependencies. Notify and Audit may be
// nil, in which case no-op implementations are used (useful in tests that
// only exercise the barrier itself).
func New(st *store.Store, rec *reconcile.Reconciler, sup *nginx.Supervisor, htmlDir string, notify Notifier, audit AuditRecorder, idGen func() string) *Orchestrator {
	if notify == nil {
		notify = noopNotifier{}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &Orchestrator{
		Store:      st,
		Reconciler: rec,
		Supervisor: sup,
		HTMLDir:    htmlDir,
		Notify:     notify,
		Audit:      audit,
		idGen:      idGen,
	}
}

// hostFragment renders h's fragment plus, if applicable, resolves its
// bound certificate.
func (o *Orchestrator) hostFragment(h *model.ProxyHost) ([]byte, error) {
	var cert *model.Certificate
	if h.CertificateID != "" {
		c, ok := o.Store.GetCertificate(h.CertificateID)
		if !ok {
			return nil, apierr.Validation(fmt.Sprintf("certificateId %q does not resolve", h.CertificateID))
		}
		cert = c
	}
	return render.Host(h, cert)
}

// materializeHost writes h's rendered fragment and activates/deactivates
// its symlink, stashing the prior bytes (and prior filename, if the domain
// changed) for rollback.
func (o *Orchestrator) materializeHost(prev, next *model.ProxyHost) (rollback func() error, err error) {
	nextName := render.HostFilename(next.Domain)
	fragment, err := o.hostFragment(next)
	if err != nil {
		return nil, err
	}

	domainChanged := prev != nil && prev.Domain != next.Domain
	var prevName string
	var prevBytes []byte
	var prevEnabled bool
	if prev != nil {
		prevName = render.HostFilename(prev.Domain)
		prevBytes, _ = o.Reconciler.ReadAvailable(prevName)
		prevEnabled = o.Reconciler.IsEnabled(prevName)
	}

	if domainChanged {
		if err := o.Reconciler.Withdraw(prevName); err != nil {
			return nil, err
		}
	}
	if err := o.Reconciler.Materialize(nextName, fragment, next.Enabled); err != nil {
		return nil, err
	}

	rollback = func() error {
		if domainChanged {
			if err := o.Reconciler.Withdraw(nextName); err != nil {
				return err
			}
			if prevBytes != nil {
				return o.Reconciler.Materialize(prevName, prevBytes, prevEnabled)
			}
			return nil
		}
		if prevBytes == nil {
			return o.Reconciler.Withdraw(nextName)
		}
		return o.Reconciler.Materialize(nextName, prevBytes, prevEnabled)
	}
	return rollback, nil
}

// runBarrier executes steps 4-7 of the reload barrier given that staging
// (step 2) and materialization (step 3) have already happened. commit
// performs the State Store's step-6 persist.
func (o *Orchestrator) runBarrier(ctx context.Context, rollback func() error, commit func() error) error {
	res, err := o.Supervisor.Validate(ctx)
	if err != nil || !res.OK {
		if rbErr := rollback(); rbErr != nil {
			return apierr.ConfigInvalid(res.Output + "; additionally, rollback failed: " + rbErr.Error())
		}
		return apierr.ConfigInvalid(res.Output)
	}

	if _, err := o.Supervisor.Reload(ctx); err != nil {
		// Reported as a warning; the new state is still committed below.
		if commitErr := commit(); commitErr != nil {
			return commitErr
		}
		o.Notify.EmitNginxStatus(ctx)
		return apierr.ReloadFailed(err)
	}

	if err := commit(); err != nil {
		return err
	}
	o.Notify.EmitNginxStatus(ctx)
	return nil
}
