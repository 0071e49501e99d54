// Package config resolves the daemon's flags and optional YAML bootstrap
// file into the concrete directory layout and external-service settings
// every other package is constructed from.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved set of daemon settings. Flags always
// override values loaded from a --config file; the file is optional and
// its absence is not an error.
type Config struct {
	Addr     string `yaml:"-"`
	Static   string `yaml:"-"`
	NginxBin string `yaml:"nginxBin"`

	DataDir             string `yaml:"dataDir"`
	NginxSitesAvailable string `yaml:"nginxSitesAvailable"`
	NginxSitesEnabled   string `yaml:"nginxSitesEnabled"`
	StubStatusURL       string `yaml:"stubStatusURL"`
	NetworkInterface    string `yaml:"networkInterface"`

	ACMEDirectoryURL string                       `yaml:"acmeDirectoryURL"`
	ACMEDNSProviders map[string]map[string]string `yaml:"acmeDNSProviders"`

	AuditDBPath string `yaml:"auditDbPath"`
}

// Default returns the compiled-in defaults matching spec.md §6's on-disk
// layout, used when no --config file is given.
func Default() Config {
	return Config{
		Addr:                ":8080",
		NginxBin:            "/usr/sbin/nginx",
		DataDir:             "/var/lib/nubi",
		NginxSitesAvailable: "/etc/nginx/sites-available",
		NginxSitesEnabled:   "/etc/nginx/sites-enabled",
		StubStatusURL:       "http://127.0.0.1/.nubi/status",
		NetworkInterface:    "eth0",
		ACMEDirectoryURL:    "production",
		AuditDBPath:         "/var/lib/nubi/audit.db",
	}
}

// LoadFile reads and parses a YAML bootstrap file, merging its values over
// base. A zero-valued field in the file leaves base's value untouched.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config file: %w", err)
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return base, fmt.Errorf("parsing config file: %w", err)
	}

	merged := base
	if fromFile.NginxBin != "" {
		merged.NginxBin = fromFile.NginxBin
	}
	if fromFile.DataDir != "" {
		merged.DataDir = fromFile.DataDir
	}
	if fromFile.NginxSitesAvailable != "" {
		merged.NginxSitesAvailable = fromFile.NginxSitesAvailable
	}
	if fromFile.NginxSitesEnabled != "" {
		merged.NginxSitesEnabled = fromFile.NginxSitesEnabled
	}
	if fromFile.StubStatusURL != "" {
		merged.StubStatusURL = fromFile.StubStatusURL
	}
	if fromFile.NetworkInterface != "" {
		merged.NetworkInterface = fromFile.NetworkInterface
	}
	if fromFile.ACMEDirectoryURL != "" {
		merged.ACMEDirectoryURL = fromFile.ACMEDirectoryURL
	}
	if len(fromFile.ACMEDNSProviders) > 0 {
		merged.ACMEDNSProviders = fromFile.ACMEDNSProviders
	}
	if fromFile.AuditDBPath != "" {
		merged.AuditDBPath = fromFile.AuditDBPath
	}
	return merged, nil
}

// UseStagingACME reports whether the resolved directory URL setting
// selects Let's Encrypt's staging environment.
func (c Config) UseStagingACME() bool {
	return c.ACMEDirectoryURL == "staging"
}
