// Package acme is the ACME Agent: it owns the long-lived account key and
// the certificate issuance/renewal lifecycle, delegating the protocol
// itself to github.com/go-acme/lego/v4.
package acme

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-acme/lego/v4/registration"
)

const accountKeyFilename = "letsencrypt/user.key"

// account implements lego's registration.User, backed by a long-lived
// ECDSA P-256 key persisted under the data directory.
type account struct {
	email string
	key   *ecdsa.PrivateKey
	reg   *registration.Resource
}

func (a *account) GetEmail() string                        { return a.email }
func (a *account) GetRegistration() *registration.Resource  { return a.reg }
func (a *account) GetPrivateKey() crypto.PrivateKey         { return a.key }

// loadOrCreateAccountKey reads the PEM-encoded EC private key at
// <dataDir>/certs/letsencrypt/user.key, generating and persisting a new
// P-256 key on first run. The key file is written mode 0600.
func loadOrCreateAccountKey(dataDir string) (*ecdsa.PrivateKey, error) {
	path := filepath.Join(dataDir, "certs", accountKeyFilename)

	if data, err := os.ReadFile(path); err == nil {
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("account key at %s is not valid PEM", path)
		}
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse account key: %w", err)
		}
		return key, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal account key: %w", err)
	}
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create letsencrypt dir: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("write account key: %w", err)
	}
	return key, nil
}
