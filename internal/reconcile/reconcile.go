// Package reconcile is the Filesystem Reconciler: atomic write + symlink
// activation of rendered fragments, the inverse withdraw operation, and
// JSON persistence of the State Store's maps. It is the only package that
// touches the nginx config tree and the data directory's JSON files.
package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Reconciler owns the on-disk layout: nginx's sites-available/sites-enabled
// trees, the data directory holding persisted JSON and certificate
// material, and the html directory for default/error bodies.
type Reconciler struct {
	SitesAvailable string
	SitesEnabled   string
	DataDir        string
	HTMLDir        string
	CertsDir       string
}

// New creates a Reconciler over the given directories, creating them with
// mode 0755 if they do not already exist.
func New(sitesAvailable, sitesEnabled, dataDir, htmlDir, certsDir string) (*Reconciler, error) {
	r := &Reconciler{
		SitesAvailable: sitesAvailable,
		SitesEnabled:   sitesEnabled,
		DataDir:        dataDir,
		HTMLDir:        htmlDir,
		CertsDir:       certsDir,
	}
	for _, dir := range []string{sitesAvailable, sitesEnabled, dataDir, htmlDir, certsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return r, nil
}

// Materialize writes the rendered fragment to available/<name> using
// write-then-rename for atomicity, then creates or refreshes the
// enabled/<name> symlink iff enabled is true (removing it otherwise).
func (r *Reconciler) Materialize(name string, fragment []byte, enabled bool) error {
	availPath := filepath.Join(r.SitesAvailable, name)
	if err := atomicWriteFile(availPath, fragment, 0o644); err != nil {
		return fmt.Errorf("materialize %s: %w", name, err)
	}

	enabledPath := filepath.Join(r.SitesEnabled, name)
	if enabled {
		return r.refreshSymlink(availPath, enabledPath)
	}
	return removeIfExists(enabledPath)
}

// Withdraw removes the symlink then the available file for name. Missing
// files are not errors.
func (r *Reconciler) Withdraw(name string) error {
	if err := removeIfExists(filepath.Join(r.SitesEnabled, name)); err != nil {
		return fmt.Errorf("withdraw symlink %s: %w", name, err)
	}
	if err := removeIfExists(filepath.Join(r.SitesAvailable, name)); err != nil {
		return fmt.Errorf("withdraw fragment %s: %w", name, err)
	}
	return nil
}

// ReadAvailable returns the current bytes of an available fragment, or nil
// with no error if it does not exist. The Orchestrator uses this to stash
// the pre-mutation content before a rename/overwrite, for rollback.
func (r *Reconciler) ReadAvailable(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.SitesAvailable, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

// IsEnabled reports whether the enabled/<name> symlink currently exists.
func (r *Reconciler) IsEnabled(name string) bool {
	_, err := os.Lstat(filepath.Join(r.SitesEnabled, name))
	return err == nil
}

func (r *Reconciler) refreshSymlink(target, linkPath string) error {
	if err := removeIfExists(linkPath); err != nil {
		return err
	}
	if err := os.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("symlink %s -> %s: %w", linkPath, target, err)
	}
	return nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWriteFile writes content to a temp file in the target directory,
// fsyncs, closes, then renames over the final path.
func atomicWriteFile(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".nubi-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	tmpPath = "" // consumed; skip deferred cleanup
	return nil
}

// WriteCertFiles atomically writes a certificate's cert/key/chain material
// under the certs directory. The key is written mode 0600.
func (r *Reconciler) WriteCertFiles(id string, cert, key, chain []byte) (certPath, keyPath, chainPath string, err error) {
	certPath = filepath.Join(r.CertsDir, id+".crt")
	keyPath = filepath.Join(r.CertsDir, id+".key")
	if err = atomicWriteFile(certPath, cert, 0o644); err != nil {
		return "", "", "", fmt.Errorf("write cert: %w", err)
	}
	if err = atomicWriteFile(keyPath, key, 0o600); err != nil {
		return "", "", "", fmt.Errorf("write key: %w", err)
	}
	if len(chain) > 0 {
		chainPath = filepath.Join(r.CertsDir, id+".chain.crt")
		if err = atomicWriteFile(chainPath, chain, 0o644); err != nil {
			return "", "", "", fmt.Errorf("write chain: %w", err)
		}
	}
	return certPath, keyPath, chainPath, nil
}

// RemoveCertFiles removes a certificate's on-disk material. Missing files
// are not errors.
func (r *Reconciler) RemoveCertFiles(id string) error {
	for _, suffix := range []string{".crt", ".key", ".chain.crt"} {
		if err := removeIfExists(filepath.Join(r.CertsDir, id+suffix)); err != nil {
			return err
		}
	}
	return nil
}

// WriteHTMLBody atomically writes a custom page body under the html
// directory (e.g. "nubi_default.html", "nubi_error_404.html").
func (r *Reconciler) WriteHTMLBody(name string, content string) error {
	return atomicWriteFile(filepath.Join(r.HTMLDir, name), []byte(content), 0o644)
}

// SaveJSON pretty-prints v and atomically writes it to <dataDir>/<name>.
func (r *Reconciler) SaveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return atomicWriteFile(filepath.Join(r.DataDir, name), data, 0o644)
}

// LoadJSON reads <dataDir>/<name> into v. A missing or corrupt file is
// treated as "start empty" with ok=false and a nil error — never fatal,
// since a first run has no file.
func (r *Reconciler) LoadJSON(name string, v any) (ok bool, err error) {
	data, readErr := os.ReadFile(filepath.Join(r.DataDir, name))
	if os.IsNotExist(readErr) {
		return false, nil
	}
	if readErr != nil {
		return false, nil
	}
	if unmarshalErr := json.Unmarshal(data, v); unmarshalErr != nil {
		return false, nil
	}
	return true, nil
}
