package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nubi.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileOverridesOnlySetFields(t *testing.T) {
	path := writeTempFile(t, `
dataDir: /opt/nubi/data
acmeDirectoryURL: staging
acmeDNSProviders:
  cloudflare:
    CLOUDFLARE_DNS_API_TOKEN: secret-token
`)
	cfg, err := LoadFile(path, Default())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/opt/nubi/data" {
		t.Errorf("expected dataDir overridden, got %q", cfg.DataDir)
	}
	if cfg.NginxBin != Default().NginxBin {
		t.Errorf("expected nginxBin to keep its default, got %q", cfg.NginxBin)
	}
	if !cfg.UseStagingACME() {
		t.Error("expected staging ACME directory to be selected")
	}
	if cfg.ACMEDNSProviders["cloudflare"]["CLOUDFLARE_DNS_API_TOKEN"] != "secret-token" {
		t.Error("expected the DNS provider config map to be loaded")
	}
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	_, err := LoadFile("/nonexistent/nubi.yaml", Default())
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadFileInvalidYAMLReturnsError(t *testing.T) {
	path := writeTempFile(t, "{{not valid yaml")
	_, err := LoadFile(path, Default())
	if err == nil {
		t.Fatal("expected an error for invalid YAML")
	}
}

func TestDefaultUsesProductionACMEDirectory(t *testing.T) {
	if Default().UseStagingACME() {
		t.Error("expected the compiled-in default to use the production ACME directory")
	}
}
