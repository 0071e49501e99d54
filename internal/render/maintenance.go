package render

import (
	"fmt"
	"html"

	"github.com/nubi-io/nubi/internal/model"
)

// MaintenancePage renders the HTML body served while maintenance mode is
// enabled. The message is escaped; this is the only renderer in the
// package that touches untrusted text, since every other fragment treats
// its inputs as already-validated nginx directive fragments.
func MaintenancePage(message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Maintenance</title></head>
<body>
<h1>We'll be right back</h1>
<p>%s</p>
</body>
</html>
`, html.EscapeString(message))
}

// ShadowRoute builds the transient DefaultRoute rendered while maintenance
// is enabled: a custom-html page carrying the maintenance message. The
// Orchestrator stashes the real DefaultRoute in Maintenance.PriorRoute and
// restores it verbatim on disable, per the rollback-to-backup invariant.
func ShadowRoute(m *model.Maintenance) *model.DefaultRoute {
	return &model.DefaultRoute{
		Enabled:    true,
		Mode:       model.DefaultModeCustomHTML,
		CustomHTML: MaintenancePage(m.Message),
	}
}
