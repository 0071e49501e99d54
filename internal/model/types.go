// Package model defines the entities owned by the State Store: proxy hosts,
// certificates, tags, the default route, and the maintenance singleton.
package model

import "time"

// LBPolicy is the load-balancing policy applied to a host's upstream block.
type LBPolicy string

const (
	LBRoundRobin LBPolicy = "round-robin"
	LBLeastConn  LBPolicy = "least-conn"
	LBIPHash     LBPolicy = "ip-hash"
)

// CertProvenance records how a Certificate's material was obtained.
type CertProvenance string

const (
	ProvenanceUploaded   CertProvenance = "uploaded"
	ProvenanceACMEIssued CertProvenance = "acme-issued"
	ProvenanceSelfSigned CertProvenance = "self-signed"
)

// DefaultRouteMode selects how the default (catch-all) listener behaves.
type DefaultRouteMode string

const (
	DefaultModeNginxDefault DefaultRouteMode = "nginx-default"
	DefaultModeCustomHTML   DefaultRouteMode = "custom-html"
	DefaultModeErrorCode    DefaultRouteMode = "error-code"
	DefaultModeProxy        DefaultRouteMode = "proxy"
	DefaultModeRedirect     DefaultRouteMode = "redirect"
)

// Backend is a single load-balanced upstream target. Ordering within a
// ProxyHost's Backends slice is preserved and significant for rendering.
type Backend struct {
	Address string `json:"address"`
	Weight  int    `json:"weight"`
	Backup  bool   `json:"backup"`
}

// ProxyHost is a declarative nginx virtual host managed by Nubi.
type ProxyHost struct {
	ID              string    `json:"id"`
	Domain          string    `json:"domain"`
	TargetURL       string    `json:"targetUrl,omitempty"`
	Backends        []Backend `json:"backends,omitempty"`
	LBPolicy        LBPolicy  `json:"lbPolicy,omitempty"`
	TLSEnabled      bool      `json:"tlsEnabled"`
	ForceRedirect   bool      `json:"forceRedirect"`
	CertificateID   string    `json:"certificateId,omitempty"`
	Websocket       bool      `json:"websocket"`
	MaintenanceMode bool      `json:"maintenanceMode"`
	Enabled         bool      `json:"enabled"`
	CustomDirectives string   `json:"customDirectives,omitempty"`
	TagIDs          []string  `json:"tagIds,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// LoadBalanced reports whether the host renders an upstream block.
func (h *ProxyHost) LoadBalanced() bool {
	return len(h.Backends) >= 2
}

// Certificate is a TLS certificate bundle managed on disk by the
// Filesystem Reconciler and referenced by ProxyHosts via id.
type Certificate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Domains     []string       `json:"domains"`
	CertPath    string         `json:"certPath"`
	KeyPath     string         `json:"keyPath"`
	ChainPath   string         `json:"chainPath,omitempty"`
	Provenance  CertProvenance `json:"provenance"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	AutoRenew   bool           `json:"autoRenew"`
	TagIDs      []string       `json:"tagIds,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// DaysUntilExpiry returns the (possibly negative) number of whole days
// between now and the certificate's expiry.
func (c *Certificate) DaysUntilExpiry(now time.Time) int {
	return int(c.ExpiresAt.Sub(now).Hours() / 24)
}

// Tag is a named, colored label attachable to hosts and certificates.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DefaultRoute is the singleton catch-all listener configuration.
type DefaultRoute struct {
	Enabled         bool              `json:"enabled"`
	Mode            DefaultRouteMode  `json:"mode"`
	CustomHTML      string            `json:"customHtml,omitempty"`
	ErrorCode       int               `json:"errorCode,omitempty"`
	ProxyTarget     string            `json:"proxyTarget,omitempty"`
	RedirectTarget  string            `json:"redirectTarget,omitempty"`
	ErrorPageBodies map[int]string    `json:"errorPageBodies,omitempty"`
}

// Maintenance is the singleton maintenance-mode toggle. When Enabled, the
// default route is shadowed by a maintenance fragment and PriorRoute holds
// the backup to restore on disable.
type Maintenance struct {
	Enabled     bool          `json:"enabled"`
	Message     string        `json:"message,omitempty"`
	PriorRoute  *DefaultRoute `json:"priorRoute,omitempty"`
}

// MetricsSnapshot is a derived, non-persisted view assembled by the
// Telemetry Fanout from the Nginx Supervisor's scrapes and the daemon's
// own uptime clock.
type MetricsSnapshot struct {
	ActiveConnections int64  `json:"activeConnections"`
	Reading           int64  `json:"reading"`
	Writing           int64  `json:"writing"`
	Waiting           int64  `json:"waiting"`
	Accepts           int64  `json:"accepts"`
	Handled           int64  `json:"handled"`
	Requests          int64  `json:"requests"`
	NginxUptime       int64  `json:"uptime"`
	NginxUptimeString string `json:"uptimeString"`
	RXBytes           uint64 `json:"rxBytes"`
	TXBytes           uint64 `json:"txBytes"`
	DaemonUptime      int64  `json:"daemonUptime"`
}

// AccessLogRecord is a single parsed nginx access-log line. It is derived
// and never persisted.
type AccessLogRecord struct {
	ClientAddr string    `json:"clientAddr"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	BodyBytes  int64     `json:"bodyBytes"`
	Referer    string    `json:"referer,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

// AuditAction enumerates the kinds of committed Orchestrator mutations
// recorded in the supplementary audit trail.
type AuditAction string

const (
	AuditCreate      AuditAction = "create"
	AuditUpdate      AuditAction = "update"
	AuditDelete      AuditAction = "delete"
	AuditRenew       AuditAction = "renew"
	AuditImport      AuditAction = "import"
	AuditBulkTag     AuditAction = "bulk-tag"
	AuditMaintenance AuditAction = "maintenance-toggle"
)

// AuditEntry is one row of the append-only mutation history. It is not
// consulted by any validation path.
type AuditEntry struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Action      AuditAction `json:"action"`
	EntityKind  string      `json:"entityKind"`
	EntityID    string      `json:"entityId"`
	BeforeJSON  string      `json:"beforeJson,omitempty"`
	AfterJSON   string      `json:"afterJson,omitempty"`
}
