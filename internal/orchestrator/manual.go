package orchestrator

import (
	"context"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/nginx"
)

// TestConfig runs `nginx -t` against the materialized tree without
// reloading or touching the State Store. Used by the "test" subscriber
// command and by any caller that wants to validate before acting.
func (o *Orchestrator) TestConfig(ctx context.Context) (nginx.Result, error) {
	return o.Supervisor.Validate(ctx)
}

// ManualReload validates and, if the configuration is valid, reloads
// nginx. Unlike the mutation barrier it never stages or commits a State
// Store change — it only re-applies whatever is already materialized on
// disk, which is what an operator means by a manual "reload" command.
func (o *Orchestrator) ManualReload(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	res, err := o.Supervisor.Validate(ctx)
	if err != nil || !res.OK {
		return apierr.ConfigInvalid(res.Output)
	}
	if _, err := o.Supervisor.Reload(ctx); err != nil {
		return apierr.ReloadFailed(err)
	}
	o.Notify.EmitNginxStatus(ctx)
	return nil
}

// Status reports the Nginx Supervisor's current config-test and version
// state. Used by the "get_status" subscriber command.
func (o *Orchestrator) Status(ctx context.Context) nginx.Status {
	return o.Supervisor.StatusCheck(ctx)
}
