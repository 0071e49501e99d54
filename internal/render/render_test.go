package render

import (
	"strings"
	"testing"

	"github.com/nubi-io/nubi/internal/model"
)

func TestHostFilename(t *testing.T) {
	cases := []struct{ domain, want string }{
		{"api.example.com", "nubi-host-api_example_com.conf"},
		{"*.example.com", "nubi-host-_wildcard__example_com.conf"},
	}
	for _, c := range cases {
		if got := HostFilename(c.domain); got != c.want {
			t.Errorf("HostFilename(%q) = %q, want %q", c.domain, got, c.want)
		}
	}
}

func TestUpstreamName(t *testing.T) {
	if got := UpstreamName("lb.example.com"); got != "nubi_lb_example_com" {
		t.Errorf("UpstreamName = %q", got)
	}
}

func TestHostRenderDeterministic(t *testing.T) {
	h := &model.ProxyHost{
		ID:        "abc123",
		Domain:    "api.example.com",
		TargetURL: "http://127.0.0.1:3000",
		Enabled:   true,
		Websocket: true,
	}
	a, err := Host(h, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Host(h, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("render(H) is not byte-identical across runs")
	}

	out := string(a)
	if strings.Count(out, "server {") != 1 {
		t.Errorf("expected exactly one server{} block, got:\n%s", out)
	}
	if !strings.Contains(out, "listen 80;") {
		t.Error("missing listen 80;")
	}
	if !strings.Contains(out, "proxy_pass http://127.0.0.1:3000;") {
		t.Error("missing proxy_pass to direct target")
	}
	if !strings.Contains(out, "proxy_set_header Upgrade $http_upgrade;") {
		t.Error("missing websocket Upgrade header")
	}
}

func TestHostRenderIdenticalFieldsIdenticalBytes(t *testing.T) {
	h1 := &model.ProxyHost{ID: "id-1", Domain: "a.example.com", TargetURL: "http://x:1", TLSEnabled: false}
	h2 := &model.ProxyHost{ID: "id-1", Domain: "a.example.com", TargetURL: "http://x:1", TLSEnabled: false}
	r1, _ := Host(h1, nil)
	r2, _ := Host(h2, nil)
	if string(r1) != string(r2) {
		t.Fatal("identical hosts rendered differently")
	}
}

func TestLoadBalancedUpstream(t *testing.T) {
	h := &model.ProxyHost{
		ID:     "lb1",
		Domain: "lb.example.com",
		Backends: []model.Backend{
			{Address: "10.0.0.1:80", Weight: 3},
			{Address: "10.0.0.2:80", Weight: 1, Backup: true},
		},
		LBPolicy: model.LBLeastConn,
	}
	out, err := Host(h, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{
		"upstream nubi_lb_example_com {",
		"least_conn;",
		"server 10.0.0.1:80 weight=3;",
		"server 10.0.0.2:80 backup;",
		"proxy_pass http://nubi_lb_example_com;",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected fragment to contain %q, got:\n%s", want, s)
		}
	}
}

func TestHostRenderWithTLSCert(t *testing.T) {
	h := &model.ProxyHost{
		ID: "id-2", Domain: "secure.example.com", TargetURL: "http://x:1",
		TLSEnabled: true, ForceRedirect: true, CertificateID: "cert-1",
	}
	cert := &model.Certificate{ID: "cert-1", CertPath: "/var/lib/nubi/certs/cert-1.crt", KeyPath: "/var/lib/nubi/certs/cert-1.key"}
	out, err := Host(h, cert)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, "ssl_certificate /var/lib/nubi/certs/cert-1.crt;") {
		t.Error("missing ssl_certificate directive referencing bound cert path")
	}
	if !strings.Contains(s, "listen 443 ssl http2;") {
		t.Error("missing listen 443")
	}
	if !strings.Contains(s, "return 301 https://$host$request_uri;") {
		t.Error("missing force-redirect block")
	}
}

func TestMaintenanceShadowRestoresByteIdentical(t *testing.T) {
	prior := &model.DefaultRoute{Enabled: true, Mode: model.DefaultModeProxy, ProxyTarget: "http://127.0.0.1:9000"}
	before, err := DefaultRoute(prior, "/var/lib/nubi/html")
	if err != nil {
		t.Fatal(err)
	}

	m := &model.Maintenance{Enabled: true, Message: "Be right back"}
	shadow := ShadowRoute(m)
	shadowOut, err := DefaultRoute(shadow, "/var/lib/nubi/html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(shadowOut), "custom_default.html") && !strings.Contains(string(shadowOut), "nubi_default.html") {
		t.Error("maintenance fragment does not reference the custom page file")
	}
	if !strings.Contains(shadow.CustomHTML, "Be right back") {
		t.Error("shadow route's HTML body does not carry the maintenance message")
	}

	after, err := DefaultRoute(prior, "/var/lib/nubi/html")
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("restoring the prior default route did not reproduce the original bytes")
	}
}
