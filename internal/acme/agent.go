package acme

import (
	"fmt"
	"time"

	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"github.com/google/uuid"

	"github.com/nubi-io/nubi/internal/apierr"
	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/reconcile"
	"github.com/nubi-io/nubi/internal/store"
)

// dns01PropagationTimeout is 120 seconds. It is not passed to any provider:
// the registry builds providers with NewDNSProvider(), which takes no
// timeout, so each provider waits for its own default propagation timeout.
const dns01PropagationTimeout = 120 * time.Second

var recursiveNameservers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// RenewalThresholdDays is the window within which an auto-renewing,
// acme-issued certificate is surfaced by RenewalScan.
const RenewalThresholdDays = 30

// Request describes one issuance or renewal call.
type Request struct {
	Domains      []string
	ProviderName string
	ConfigKVs    map[string]string
	Email        string
	AutoRenew    bool
}

// legoClient is the subset of *lego.Client the Agent drives, narrowed so
// tests can substitute a fake without a network-capable ACME directory.
type legoClient interface {
	RegisterAndSetChallenge(providerName string, provider interface {
		Present(domain, token, keyAuth string) error
		CleanUp(domain, token, keyAuth string) error
	}) error
	Obtain(req certificate.ObtainRequest) (*certificate.Resource, error)
}

// Agent is the ACME lifecycle owner: account key, directory selection, and
// the provider registry.
type Agent struct {
	DataDir    string
	UseStaging bool

	// newClient constructs the real lego client; overridden in tests.
	newClient func(acct *account, directoryURL string) (legoClient, error)
}

// New returns an Agent rooted at dataDir. Account key material is loaded
// or generated lazily on first use, not at construction.
func New(dataDir string, useStaging bool) *Agent {
	a := &Agent{DataDir: dataDir, UseStaging: useStaging}
	a.newClient = a.realClient
	return a
}

func (a *Agent) directoryURL() string {
	if a.UseStaging {
		return lego.LEDirectoryStaging
	}
	return lego.LEDirectoryProduction
}

func (a *Agent) loadAccount(email string) (*account, error) {
	key, err := loadOrCreateAccountKey(a.DataDir)
	if err != nil {
		return nil, err
	}
	return &account{email: email, key: key}, nil
}

// realClient is the default newClient implementation, driving the actual
// lego library against a live ACME directory.
func (a *Agent) realClient(acct *account, directoryURL string) (legoClient, error) {
	cfg := lego.NewConfig(acct)
	cfg.CADirURL = directoryURL

	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create lego client: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("register account: %w", err)
	}
	acct.reg = reg

	return &realLegoClient{client: client}, nil
}

type realLegoClient struct {
	client *lego.Client
}

func (r *realLegoClient) RegisterAndSetChallenge(providerName string, provider interface {
	Present(domain, token, keyAuth string) error
	CleanUp(domain, token, keyAuth string) error
}) error {
	// Only the recursive resolvers are set here, since the check applies
	// regardless of which provider issued the record. No propagation
	// timeout is set: each provider keeps the default its NewDNSProvider()
	// constructor chose.
	return r.client.Challenge.SetDNS01Provider(provider,
		dns01.AddRecursiveNameservers(recursiveNameservers...),
	)
}

func (r *realLegoClient) Obtain(req certificate.ObtainRequest) (*certificate.Resource, error) {
	return r.client.Certificate.Obtain(req)
}

// Issue obtains a fresh certificate bundle for req.Domains via DNS-01,
// persists the cert/key/chain via reconciler.WriteCertFiles, and returns a
// Certificate entity ready for the State Store's create path. The caller
// (the Orchestrator) must hold its mutex across this entire call, since the
// DNS-01 provider's credentials are passed as process-scoped environment
// variables.
func (a *Agent) Issue(reconciler *reconcile.Reconciler, req Request) (*model.Certificate, error) {
	return a.issue(reconciler, "", req)
}

// Renew issues a fresh bundle for existing's domain set, writing the new
// cert/key/chain material over the same on-disk files (keyed by existing's
// id) so every host still bound to this certificate's id keeps resolving to
// valid paths. It preserves existing's id, name, and creation time; the
// caller persists the returned value via the same Certificate update path
// as any other edit.
func (a *Agent) Renew(reconciler *reconcile.Reconciler, existing *model.Certificate, req Request) (*model.Certificate, error) {
	req.Domains = existing.Domains
	renewed, err := a.issue(reconciler, existing.ID, req)
	if err != nil {
		return nil, err
	}
	renewed.Name = existing.Name
	renewed.CreatedAt = existing.CreatedAt
	return renewed, nil
}

// issue drives the DNS-01 obtain flow and writes the resulting bundle to
// disk under id (a freshly generated uuid if id is empty).
func (a *Agent) issue(reconciler *reconcile.Reconciler, id string, req Request) (*model.Certificate, error) {
	spec, err := lookupProvider(req.ProviderName)
	if err != nil {
		return nil, apierr.Acme(err)
	}

	acct, err := a.loadAccount(req.Email)
	if err != nil {
		return nil, apierr.Acme(err)
	}

	var resource *certificate.Resource
	err = withProviderEnv(req.ConfigKVs, func() error {
		provider, err := spec.New()
		if err != nil {
			return fmt.Errorf("construct %s provider: %w", spec.Name, err)
		}
		client, err := a.newClient(acct, a.directoryURL())
		if err != nil {
			return err
		}
		if err := client.RegisterAndSetChallenge(spec.Name, provider); err != nil {
			return fmt.Errorf("configure DNS-01 challenge: %w", err)
		}
		resource, err = client.Obtain(certificate.ObtainRequest{Domains: req.Domains, Bundle: true})
		if err != nil {
			return fmt.Errorf("obtain certificate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apierr.Acme(err)
	}

	if id == "" {
		id = uuid.NewString()
	}
	certPath, keyPath, chainPath, err := reconciler.WriteCertFiles(id, resource.Certificate, resource.PrivateKey, resource.IssuerCertificate)
	if err != nil {
		return nil, apierr.Acme(fmt.Errorf("write certificate files: %w", err))
	}

	return &model.Certificate{
		ID:         id,
		Name:       req.Domains[0],
		Domains:    req.Domains,
		Provenance: model.ProvenanceACMEIssued,
		ExpiresAt:  parseExpiry(resource.Certificate),
		AutoRenew:  req.AutoRenew,
		CertPath:   certPath,
		KeyPath:    keyPath,
		ChainPath:  chainPath,
	}, nil
}

// RenewalScan reports certificates due for renewal: auto-renew,
// acme-issued, and within RenewalThresholdDays of expiry. It is read-only;
// an external scheduler decides whether and when to call Renew for each
// result.
func (a *Agent) RenewalScan(st *store.Store, now time.Time) []*model.Certificate {
	return st.RenewalScan(now, RenewalThresholdDays)
}

// parseExpiry extracts notAfter from a PEM certificate; if that fails, it
// falls back to now + 90 days, matching Let's Encrypt's standard lifetime.
func parseExpiry(certPEM []byte) time.Time {
	if t, ok := notAfterFromPEM(certPEM); ok {
		return t
	}
	return time.Now().UTC().Add(90 * 24 * time.Hour)
}
