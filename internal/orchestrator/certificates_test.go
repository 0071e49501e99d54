package orchestrator

import (
	"context"
	"testing"

	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/render"
)

func TestApplyCertificateToHostsBindsAllHostsInOneBarrierPass(t *testing.T) {
	o := newTestOrchestrator(t, 0, 0)
	ctx := context.Background()

	cert, err := o.Store.CommitCertificate(&model.Certificate{
		Domains:    []string{"a.example.com", "b.example.com"},
		CertPath:   "/data/certs/c1.crt",
		KeyPath:    "/data/certs/c1.key",
		Provenance: model.ProvenanceUploaded,
	})
	if err != nil {
		t.Fatal(err)
	}

	hostA, err := o.CreateHost(ctx, &model.ProxyHost{Domain: "a.example.com", TargetURL: "http://a:1", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	hostB, err := o.CreateHost(ctx, &model.ProxyHost{Domain: "b.example.com", TargetURL: "http://b:1", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := o.ApplyCertificateToHosts(ctx, cert.ID, []string{hostA.ID, hostB.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated hosts, got %d", len(updated))
	}
	for _, h := range updated {
		if h.CertificateID != cert.ID || !h.TLSEnabled {
			t.Errorf("expected host %s bound to cert with tls enabled, got certId=%q tls=%v", h.Domain, h.CertificateID, h.TLSEnabled)
		}
	}

	gotA, _ := o.Store.GetHost(hostA.ID)
	if gotA.CertificateID != cert.ID {
		t.Error("expected the store to reflect the committed certificate binding")
	}
}

func TestApplyCertificateToHostsRejectsUnknownCertificate(t *testing.T) {
	o := newTestOrchestrator(t, 0, 0)
	_, err := o.ApplyCertificateToHosts(context.Background(), "missing-cert", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown certificate id")
	}
}

func TestApplyCertificateToHostsRollsBackAlreadyStagedHostsOnUnknownHost(t *testing.T) {
	o := newTestOrchestrator(t, 0, 0)
	ctx := context.Background()

	cert, err := o.Store.CommitCertificate(&model.Certificate{Domains: []string{"a.example.com"}, Provenance: model.ProvenanceUploaded})
	if err != nil {
		t.Fatal(err)
	}
	hostA, err := o.CreateHost(ctx, &model.ProxyHost{Domain: "a.example.com", TargetURL: "http://a:1", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	name := render.HostFilename(hostA.Domain)
	before, err := o.Reconciler.ReadAvailable(name)
	if err != nil {
		t.Fatal(err)
	}

	_, err = o.ApplyCertificateToHosts(ctx, cert.ID, []string{hostA.ID, "missing-host"})
	if err == nil {
		t.Fatal("expected an error for an unknown host id")
	}

	got, _ := o.Store.GetHost(hostA.ID)
	if got.CertificateID != "" {
		t.Error("expected the store binding to stay unset when the batch aborts")
	}
	after, err := o.Reconciler.ReadAvailable(name)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("expected the already-staged host's fragment to be rolled back byte-identical")
	}
}
