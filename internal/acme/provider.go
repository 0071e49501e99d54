package acme

import (
	"fmt"
	"os"

	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/providers/dns/cloudflare"
	"github.com/go-acme/lego/v4/providers/dns/digitalocean"
	"github.com/go-acme/lego/v4/providers/dns/route53"
)

// ProviderSpec describes one compiled-in DNS-01 provider: its name, the
// environment-variable keys its lego constructor reads, and a constructor
// bound to those variables.
type ProviderSpec struct {
	Name           string
	RequiredFields []string
	New            func() (challenge.Provider, error)
}

// providerRegistry enumerates the DNS-01 providers compiled into this
// build. Ordering is stable for presentation to an operator UI.
var providerRegistry = []ProviderSpec{
	{
		Name:           "cloudflare",
		RequiredFields: []string{"CLOUDFLARE_DNS_API_TOKEN"},
		New:            func() (challenge.Provider, error) { return cloudflare.NewDNSProvider() },
	},
	{
		Name:           "route53",
		RequiredFields: []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION"},
		New:            func() (challenge.Provider, error) { return route53.NewDNSProvider() },
	},
	{
		Name:           "digitalocean",
		RequiredFields: []string{"DO_AUTH_TOKEN"},
		New:            func() (challenge.Provider, error) { return digitalocean.NewDNSProvider() },
	},
}

// Providers returns the compiled-in provider registry, for presenting the
// supported names and their required configuration fields to an operator.
func Providers() []ProviderSpec {
	return providerRegistry
}

func lookupProvider(name string) (ProviderSpec, error) {
	for _, p := range providerRegistry {
		if p.Name == name {
			return p, nil
		}
	}
	return ProviderSpec{}, fmt.Errorf("unknown DNS-01 provider %q", name)
}

// withProviderEnv sets configKVs as process-scoped environment variables
// for the duration of fn, restoring the prior values (or unsetting them)
// afterward. The Orchestrator's mutex must be held across this call for
// its entire duration, since process environment is global state shared
// across every in-flight operation.
func withProviderEnv(configKVs map[string]string, fn func() error) error {
	type saved struct {
		value string
		had   bool
	}
	prior := make(map[string]saved, len(configKVs))
	for k, v := range configKVs {
		old, had := os.LookupEnv(k)
		prior[k] = saved{value: old, had: had}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set env %s: %w", k, err)
		}
	}
	defer func() {
		for k, p := range prior {
			if p.had {
				os.Setenv(k, p.value)
			} else {
				os.Unsetenv(k)
			}
		}
	}()
	return fn()
}
