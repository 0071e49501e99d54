package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/store"
)

func marshalForAudit(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func (o *Orchestrator) recordAudit(action model.AuditAction, entityKind, entityID string, before, after any) {
	o.Audit.Record(model.AuditEntry{
		ID:         o.idGen(),
		Timestamp:  time.Now().UTC(),
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		BeforeJSON: marshalForAudit(before),
		AfterJSON:  marshalForAudit(after),
	})
}

// CreateHost runs the full reload barrier for a new ProxyHost: stage,
// render, reconcile, validate (rolling back on failure), reload (best
// effort), commit, notify.
func (o *Orchestrator) CreateHost(ctx context.Context, draft *model.ProxyHost) (*model.ProxyHost, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	staged, err := o.Store.PrepareCreateHost(draft)
	if err != nil {
		return nil, err
	}

	rollback, err := o.materializeHost(nil, staged)
	if err != nil {
		return nil, err
	}

	err = o.runBarrier(ctx, rollback, func() error {
		return o.Store.CommitHost(staged)
	})
	if err != nil && !apierr.Is(err, apierr.KindReloadFailed) {
		return nil, err
	}
	o.recordAudit(model.AuditCreate, "proxy_host", staged.ID, nil, staged)
	return staged, err
}

// UpdateHost runs the full reload barrier for an existing ProxyHost.
func (o *Orchestrator) UpdateHost(ctx context.Context, id string, patch func(*model.ProxyHost)) (*model.ProxyHost, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	oldHost, staged, err := o.Store.PrepareUpdateHost(id, patch)
	if err != nil {
		return nil, err
	}

	rollback, err := o.materializeHost(oldHost, staged)
	if err != nil {
		return nil, err
	}

	err = o.runBarrier(ctx, rollback, func() error {
		return o.Store.CommitHost(staged)
	})
	if err != nil && !apierr.Is(err, apierr.KindReloadFailed) {
		return nil, err
	}
	o.recordAudit(model.AuditUpdate, "proxy_host", staged.ID, oldHost, staged)
	return staged, err
}

// DeleteHost withdraws the host's fragment and removes it from the store.
// Deletion has no "invalid config" failure mode (withdrawing a fragment
// cannot make the remaining configuration invalid), so there is no
// rollback step. nginx is validated and, only if that passes, reloaded to
// drop the vhost; the deletion is committed either way.
func (o *Orchestrator) DeleteHost(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	existing, err := o.Store.PrepareDeleteHost(id)
	if err != nil {
		return err
	}
	name := hostFilenameFor(existing)
	if err := o.Reconciler.Withdraw(name); err != nil {
		return err
	}

	if _, err := o.Supervisor.Validate(ctx); err == nil {
		if _, err := o.Supervisor.Reload(ctx); err != nil {
			if commitErr := o.Store.CommitDeleteHost(id); commitErr != nil {
				return commitErr
			}
			o.Notify.EmitNginxStatus(ctx)
			o.recordAudit(model.AuditDelete, "proxy_host", id, existing, nil)
			return nginxReloadWarning(err)
		}
	}

	if err := o.Store.CommitDeleteHost(id); err != nil {
		return err
	}
	o.Notify.EmitNginxStatus(ctx)
	o.recordAudit(model.AuditDelete, "proxy_host", id, existing, nil)
	return nil
}

// ImportHosts drives one full reload-barrier pass per item, matching the
// State Store's skip/overwrite/create semantics while still validating
// each item against the live nginx binary before it is committed. A
// per-item failure is recorded in Errs and never aborts the batch.
func (o *Orchestrator) ImportHosts(ctx context.Context, drafts []*model.ProxyHost, mode store.ImportMode) *store.ImportResult {
	res := &store.ImportResult{}
	for i, draft := range drafts {
		existing, found := o.Store.GetHostByDomain(draft.Domain)
		switch {
		case found && mode == store.ImportSkip:
			res.Skipped++
		case found:
			if _, err := o.UpdateHost(ctx, existing.ID, func(h *model.ProxyHost) {
				applyImportDraft(h, draft)
			}); err != nil {
				res.Errs = append(res.Errs, itemErr(i, draft.Domain, err))
				continue
			}
			res.Updated++
		default:
			if _, err := o.CreateHost(ctx, draft); err != nil {
				res.Errs = append(res.Errs, itemErr(i, draft.Domain, err))
				continue
			}
			res.Created++
		}
	}
	return res
}

func applyImportDraft(h, draft *model.ProxyHost) {
	h.TargetURL = draft.TargetURL
	h.Backends = append([]model.Backend(nil), draft.Backends...)
	h.LBPolicy = draft.LBPolicy
	h.TLSEnabled = draft.TLSEnabled
	h.ForceRedirect = draft.ForceRedirect
	h.CertificateID = draft.CertificateID
	h.Websocket = draft.Websocket
	h.Enabled = draft.Enabled
	h.CustomDirectives = draft.CustomDirectives
	h.TagIDs = append([]string(nil), draft.TagIDs...)
}
