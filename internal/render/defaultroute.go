package render

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"github.com/nubi-io/nubi/internal/model"
)

const defaultRouteTemplateSrc = `# nubi: default route
server {
    listen 80 default_server;
    server_name _;

    location = /.nubi/status {
        stub_status;
        allow 127.0.0.1;
        deny all;
    }

{{- if not .Route.Enabled}}
    location / {
        return 404;
    }
{{- else if eq .Route.Mode "nginx-default"}}
    location / {
        root /usr/share/nginx/html;
        index index.html;
    }
{{- else if eq .Route.Mode "custom-html"}}
    location / {
        root {{.HTMLRoot}};
        try_files /nubi_default.html =404;
    }
{{- else if eq .Route.Mode "error-code"}}
    location / {
        return {{.Route.ErrorCode}};
    }
{{- else if eq .Route.Mode "proxy"}}
    location / {
        proxy_pass {{.Route.ProxyTarget}};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;
    }
{{- else if eq .Route.Mode "redirect"}}
    location / {
        return 301 {{.Route.RedirectTarget}};
    }
{{- end}}

{{- range .ErrorCodes}}
    error_page {{.}} /nubi_error_{{.}}.html;
{{- end}}
}
`

var defaultRouteTemplate = template.Must(template.New("default-route").Parse(defaultRouteTemplateSrc))

type defaultRouteTemplateData struct {
	Route      *model.DefaultRoute
	HTMLRoot   string
	ErrorCodes []int
}

// DefaultRoute renders the singleton catch-all listener fragment. htmlRoot
// is the directory holding custom body files (cmd/nubid passes
// <dataDir>/html).
func DefaultRoute(r *model.DefaultRoute, htmlRoot string) ([]byte, error) {
	codes := make([]int, 0, len(r.ErrorPageBodies))
	for code := range r.ErrorPageBodies {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	data := defaultRouteTemplateData{Route: r, HTMLRoot: htmlRoot, ErrorCodes: codes}
	var buf bytes.Buffer
	if err := defaultRouteTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render default route: %w", err)
	}
	return buf.Bytes(), nil
}
