// Package render is the Config Renderer: a pure translation from a
// ProxyHost, DefaultRoute, or Maintenance record (plus its transitively
// referenced Certificate) to a byte buffer holding a valid nginx fragment.
// Rendering never fails for a State-Store-validated entity; it performs no
// I/O and consults no global state, so testing it never requires a running
// nginx.
package render

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/nubi-io/nubi/internal/model"
)

const hostTemplateSrc = `# nubi: host {{.Host.ID}}
{{- if .LoadBalanced}}
upstream {{.UpstreamName}} {
{{- if .PolicyDirective}}
    {{.PolicyDirective}};
{{- end}}
{{- range .Host.Backends}}
    server {{.Address}}{{if gt .Weight 1}} weight={{.Weight}}{{end}}{{if .Backup}} backup{{end}};
{{- end}}
}
{{- end}}

server {
    listen 80;
{{- if .Host.TLSEnabled}}
    listen 443 ssl http2;
{{- end}}
    server_name {{.Host.Domain}};
{{- if .ForceRedirect}}
    if ($scheme = http) {
        return 301 https://$host$request_uri;
    }
{{- end}}
{{- if .TLSBlock}}
    ssl_certificate {{.Cert.CertPath}};
    ssl_certificate_key {{.Cert.KeyPath}};
{{- if .Cert.ChainPath}}
    ssl_trusted_certificate {{.Cert.ChainPath}};
{{- end}}
{{- end}}

{{- if .Host.MaintenanceMode}}
    location / {
        return 503;
    }
{{- else}}
    location / {
        proxy_pass {{.ProxyTarget}};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
{{- if .Host.Websocket}}
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
        proxy_read_timeout 3600s;
{{- end}}
    }
{{- end}}
{{- if .Host.CustomDirectives}}
    {{.Host.CustomDirectives}}
{{- end}}
}
`

var hostTemplate = template.Must(template.New("host").Parse(hostTemplateSrc))

type hostTemplateData struct {
	Host            *model.ProxyHost
	Cert            *model.Certificate
	LoadBalanced    bool
	UpstreamName    string
	PolicyDirective string
	ForceRedirect   bool
	TLSBlock        bool
	ProxyTarget     string
}

func policyDirective(p model.LBPolicy) string {
	switch p {
	case model.LBLeastConn:
		return "least_conn"
	case model.LBIPHash:
		return "ip_hash"
	default:
		return "" // round-robin is nginx's unmarked default
	}
}

// Host renders a ProxyHost's nginx fragment. cert is the host's bound
// certificate, or nil if unbound or TLS disabled; the caller (the
// Orchestrator, via the State Store) resolves the reference before calling.
func Host(h *model.ProxyHost, cert *model.Certificate) ([]byte, error) {
	lb := h.LoadBalanced()
	target := h.TargetURL
	if lb {
		target = "http://" + UpstreamName(h.Domain)
	}

	data := hostTemplateData{
		Host:            h,
		Cert:            cert,
		LoadBalanced:    lb,
		UpstreamName:    UpstreamName(h.Domain),
		PolicyDirective: policyDirective(h.LBPolicy),
		ForceRedirect:   h.ForceRedirect && h.TLSEnabled,
		TLSBlock:        h.TLSEnabled && cert != nil,
		ProxyTarget:     target,
	}

	var buf bytes.Buffer
	if err := hostTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render host %s: %w", h.Domain, err)
	}
	return buf.Bytes(), nil
}
