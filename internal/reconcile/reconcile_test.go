package reconcile

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestReconciler(t *testing.T) *Reconciler {
	t.Helper()
	root := t.TempDir()
	r, err := New(
		filepath.Join(root, "sites-available"),
		filepath.Join(root, "sites-enabled"),
		filepath.Join(root, "data"),
		filepath.Join(root, "html"),
		filepath.Join(root, "certs"),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestMaterializeAndSymlink(t *testing.T) {
	r := newTestReconciler(t)
	name := "nubi-host-api_example_com.conf"

	if err := r.Materialize(name, []byte("server {}"), true); err != nil {
		t.Fatal(err)
	}
	if !r.IsEnabled(name) {
		t.Fatal("expected enabled symlink to exist")
	}
	data, err := r.ReadAvailable(name)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "server {}" {
		t.Fatalf("unexpected fragment content: %s", data)
	}

	// Disabling removes the symlink but keeps the available file.
	if err := r.Materialize(name, []byte("server {}"), false); err != nil {
		t.Fatal(err)
	}
	if r.IsEnabled(name) {
		t.Fatal("expected symlink to be removed")
	}
	if _, err := os.Stat(filepath.Join(r.SitesAvailable, name)); err != nil {
		t.Fatal("available fragment should still exist")
	}
}

func TestWithdrawIsIdempotent(t *testing.T) {
	r := newTestReconciler(t)
	name := "nubi-host-gone.conf"
	if err := r.Withdraw(name); err != nil {
		t.Fatalf("withdraw of nonexistent fragment must not error: %v", err)
	}
	if err := r.Materialize(name, []byte("x"), true); err != nil {
		t.Fatal(err)
	}
	if err := r.Withdraw(name); err != nil {
		t.Fatal(err)
	}
	if err := r.Withdraw(name); err != nil {
		t.Fatalf("second withdraw must also not error: %v", err)
	}
}

func TestLoadJSONStartsEmptyOnMissingOrCorrupt(t *testing.T) {
	r := newTestReconciler(t)
	var hosts []string
	ok, err := r.LoadJSON("proxy_hosts.json", &hosts)
	if err != nil || ok {
		t.Fatalf("expected ok=false, err=nil for missing file, got ok=%v err=%v", ok, err)
	}

	if err := os.WriteFile(filepath.Join(r.DataDir, "certificates.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	var certs []string
	ok, err = r.LoadJSON("certificates.json", &certs)
	if err != nil || ok {
		t.Fatalf("expected partial JSON to start empty without error, got ok=%v err=%v", ok, err)
	}
}

func TestSaveThenLoadJSONRoundTrips(t *testing.T) {
	r := newTestReconciler(t)
	in := []string{"a", "b", "c"}
	if err := r.SaveJSON("tags.json", in); err != nil {
		t.Fatal(err)
	}
	var out []string
	ok, err := r.LoadJSON("tags.json", &out)
	if err != nil || !ok {
		t.Fatalf("expected successful round trip, got ok=%v err=%v", ok, err)
	}
	if len(out) != 3 || out[0] != "a" {
		t.Fatalf("unexpected round-tripped content: %v", out)
	}
}

func TestCertFilesKeyModeRestricted(t *testing.T) {
	r := newTestReconciler(t)
	certPath, keyPath, _, err := r.WriteCertFiles("cert-1", []byte("CERT"), []byte("KEY"), nil)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected key mode 0600, got %o", info.Mode().Perm())
	}
	if _, err := os.Stat(certPath); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveCertFiles("cert-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(certPath); !os.IsNotExist(err) {
		t.Error("expected cert file removed")
	}
}
