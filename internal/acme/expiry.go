package acme

import (
	"crypto/x509"
	"encoding/pem"
	"time"
)

// notAfterFromPEM parses the leaf certificate's NotAfter field out of a
// PEM bundle. It returns ok=false if the bundle cannot be parsed, so the
// caller can fall back to the now+90d upper bound.
func notAfterFromPEM(bundle []byte) (time.Time, bool) {
	block, _ := pem.Decode(bundle)
	if block == nil {
		return time.Time{}, false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, false
	}
	return cert.NotAfter, true
}
