package acme

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certificate"

	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/reconcile"
)

func newTestReconciler(t *testing.T) *reconcile.Reconciler {
	t.Helper()
	dir := t.TempDir()
	rec, err := reconcile.New(
		filepath.Join(dir, "available"),
		filepath.Join(dir, "enabled"),
		dir,
		filepath.Join(dir, "html"),
		filepath.Join(dir, "certs"),
	)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestProviderRegistryListsRequiredFields(t *testing.T) {
	specs := Providers()
	if len(specs) != 3 {
		t.Fatalf("expected 3 compiled-in providers, got %d", len(specs))
	}
	byName := map[string][]string{}
	for _, s := range specs {
		byName[s.Name] = s.RequiredFields
	}
	if len(byName["cloudflare"]) != 1 || byName["cloudflare"][0] != "CLOUDFLARE_DNS_API_TOKEN" {
		t.Errorf("unexpected cloudflare fields: %v", byName["cloudflare"])
	}
	if len(byName["route53"]) != 3 {
		t.Errorf("unexpected route53 fields: %v", byName["route53"])
	}
	if len(byName["digitalocean"]) != 1 {
		t.Errorf("unexpected digitalocean fields: %v", byName["digitalocean"])
	}
}

func TestAccountKeyPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	k1, err := loadOrCreateAccountKey(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, "certs", accountKeyFilename))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected account key mode 0600, got %o", info.Mode().Perm())
	}

	k2, err := loadOrCreateAccountKey(dir)
	if err != nil {
		t.Fatal(err)
	}
	if k1.D.Cmp(k2.D) != 0 {
		t.Fatal("expected the same key to be reloaded, not regenerated")
	}
}

func TestWithProviderEnvRestoresPriorValue(t *testing.T) {
	os.Setenv("NUBI_TEST_EXISTING", "old")
	defer os.Unsetenv("NUBI_TEST_EXISTING")
	os.Unsetenv("NUBI_TEST_NEW")

	err := withProviderEnv(map[string]string{
		"NUBI_TEST_EXISTING": "new",
		"NUBI_TEST_NEW":      "created",
	}, func() error {
		if os.Getenv("NUBI_TEST_EXISTING") != "new" || os.Getenv("NUBI_TEST_NEW") != "created" {
			t.Fatal("env vars not set during the call")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if os.Getenv("NUBI_TEST_EXISTING") != "old" {
		t.Error("expected prior value restored")
	}
	if _, ok := os.LookupEnv("NUBI_TEST_NEW"); ok {
		t.Error("expected a newly-set var to be unset afterward")
	}
}

type fakeLegoClient struct {
	obtained certificate.ObtainRequest
}

func (f *fakeLegoClient) RegisterAndSetChallenge(providerName string, provider interface {
	Present(domain, token, keyAuth string) error
	CleanUp(domain, token, keyAuth string) error
}) error {
	return nil
}

func (f *fakeLegoClient) Obtain(req certificate.ObtainRequest) (*certificate.Resource, error) {
	f.obtained = req
	return &certificate.Resource{
		Domain:      req.Domains[0],
		Certificate: nil, // malformed on purpose; exercises the now+90d fallback
		PrivateKey:  []byte("fake-key"),
	}, nil
}

func TestIssueFallsBackToNinetyDayExpiryWhenCertUnparsable(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("DO_AUTH_TOKEN", "test-token")
	defer os.Unsetenv("DO_AUTH_TOKEN")

	a := New(dir, true)
	fake := &fakeLegoClient{}
	a.newClient = func(acct *account, directoryURL string) (legoClient, error) {
		return fake, nil
	}

	before := time.Now().UTC()
	cert, err := a.Issue(newTestReconciler(t), Request{
		Domains:      []string{"api.example.com"},
		ProviderName: "digitalocean",
		ConfigKVs:    map[string]string{"DO_AUTH_TOKEN": "test-token"},
		AutoRenew:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cert.CertPath == "" || cert.KeyPath == "" {
		t.Error("expected CertPath and KeyPath to be populated after issuance")
	}
	if cert.Provenance != model.ProvenanceACMEIssued {
		t.Errorf("expected acme-issued provenance, got %q", cert.Provenance)
	}
	if !cert.AutoRenew {
		t.Error("expected autoRenew to be preserved from the request")
	}
	delta := cert.ExpiresAt.Sub(before)
	if delta < 89*24*time.Hour || delta > 91*24*time.Hour {
		t.Errorf("expected ~90 day fallback expiry, got delta=%v", delta)
	}
	if fake.obtained.Domains[0] != "api.example.com" {
		t.Error("expected the fake client to receive the requested domain")
	}
}

func TestIssueRejectsUnknownProvider(t *testing.T) {
	a := New(t.TempDir(), true)
	_, err := a.Issue(newTestReconciler(t), Request{Domains: []string{"x.example.com"}, ProviderName: "nope"})
	if err == nil {
		t.Fatal("expected an error for an unknown provider name")
	}
}
