package orchestrator

import (
	"context"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/render"
)

const defaultRouteName = render.DefaultRouteFilename

func (o *Orchestrator) materializeDefaultRoute(next *model.DefaultRoute) (rollback func() error, err error) {
	fragment, err := render.DefaultRoute(next, o.HTMLDir)
	if err != nil {
		return nil, err
	}
	if next.Mode == model.DefaultModeCustomHTML && next.CustomHTML != "" {
		if err := o.Reconciler.WriteHTMLBody("nubi_default.html", next.CustomHTML); err != nil {
			return nil, err
		}
	}
	prevBytes, _ := o.Reconciler.ReadAvailable(defaultRouteName)
	prevEnabled := o.Reconciler.IsEnabled(defaultRouteName)

	if err := o.Reconciler.Materialize(defaultRouteName, fragment, next.Enabled); err != nil {
		return nil, err
	}

	rollback = func() error {
		if prevBytes == nil {
			return o.Reconciler.Withdraw(defaultRouteName)
		}
		return o.Reconciler.Materialize(defaultRouteName, prevBytes, prevEnabled)
	}
	return rollback, nil
}

// SetDefaultRoute runs the reload barrier for the singleton default route.
func (o *Orchestrator) SetDefaultRoute(ctx context.Context, next *model.DefaultRoute) (*model.DefaultRoute, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	old := o.Store.GetDefaultRoute()
	rollback, err := o.materializeDefaultRoute(next)
	if err != nil {
		return nil, err
	}

	err = o.runBarrier(ctx, rollback, func() error {
		return o.Store.CommitDefaultRoute(next)
	})
	if err != nil && !apierr.Is(err, apierr.KindReloadFailed) {
		return nil, err
	}
	o.recordAudit(model.AuditUpdate, "default_route", "singleton", old, next)
	return next, err
}

// EnableMaintenance shadows the current default route with the
// maintenance page, stashing the prior route in Maintenance.PriorRoute so
// DisableMaintenance can restore it byte-identically.
func (o *Orchestrator) EnableMaintenance(ctx context.Context, message string) (*model.Maintenance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	priorRoute := o.Store.GetDefaultRoute()
	m := &model.Maintenance{Enabled: true, Message: message, PriorRoute: priorRoute}
	shadow := render.ShadowRoute(m)

	rollback, err := o.materializeDefaultRoute(shadow)
	if err != nil {
		return nil, err
	}

	err = o.runBarrier(ctx, rollback, func() error {
		if err := o.Store.CommitMaintenance(m); err != nil {
			return err
		}
		return o.Store.CommitDefaultRoute(shadow)
	})
	if err != nil && !apierr.Is(err, apierr.KindReloadFailed) {
		return nil, err
	}
	o.Notify.EmitMaintenanceMode(ctx)
	o.recordAudit(model.AuditMaintenance, "maintenance", "singleton", nil, m)
	return m, err
}

// DisableMaintenance restores the default route stashed when maintenance
// was enabled.
func (o *Orchestrator) DisableMaintenance(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	current := o.Store.GetMaintenance()
	if !current.Enabled || current.PriorRoute == nil {
		return nil
	}

	restore := current.PriorRoute
	rollback, err := o.materializeDefaultRoute(restore)
	if err != nil {
		return err
	}

	cleared := &model.Maintenance{}
	err = o.runBarrier(ctx, rollback, func() error {
		if err := o.Store.CommitDefaultRoute(restore); err != nil {
			return err
		}
		return o.Store.CommitMaintenance(cleared)
	})
	if err != nil && !apierr.Is(err, apierr.KindReloadFailed) {
		return err
	}
	o.Notify.EmitMaintenanceMode(ctx)
	o.recordAudit(model.AuditMaintenance, "maintenance", "singleton", current, cleared)
	return err
}
