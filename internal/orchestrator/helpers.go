package orchestrator

import (
	"fmt"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/render"
)

func hostFilenameFor(h *model.ProxyHost) string {
	return render.HostFilename(h.Domain)
}

func nginxReloadWarning(err error) error {
	return apierr.ReloadFailed(err)
}

func itemErr(index int, domain string, err error) string {
	return fmt.Sprintf("item %d (%s): %v", index, domain, err)
}
