package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/wsusd/wsusd/internal/logging"
)

var log = logging.L("mtls")

// LoadServerCertificate loads a PEM-encoded certificate/key pair from disk
// for the HTTPS listener (SPEC_FULL.md §4.9's tls_cert_file/tls_key_file).
func LoadServerCertificate(certFile, keyFile string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load server TLS key pair: %w", err)
	}
	return &cert, nil
}

// BuildServerTLSConfig returns a *tls.Config for the HTTP server's
// listener. Returns nil if certFile or keyFile is empty (plain HTTP).
func BuildServerTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}

	cert, err := LoadServerCertificate(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
	}, nil
}

// LeafCertificate extracts the parsed leaf x509 certificate from a loaded
// tls.Certificate, for the startup expiry warning logged by CheckExpiry.
func LeafCertificate(cert *tls.Certificate) (*x509.Certificate, error) {
	if cert == nil || len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("no certificate loaded")
	}
	return x509.ParseCertificate(cert.Certificate[0])
}

// IsExpired reports whether leaf has passed its NotAfter time.
func IsExpired(leaf *x509.Certificate) bool {
	if leaf == nil {
		return false
	}
	return time.Now().After(leaf.NotAfter)
}

// NeedsRenewal reports whether leaf has passed 2/3 of its validity window,
// the point at which an operator should rotate it.
func NeedsRenewal(leaf *x509.Certificate) bool {
	if leaf == nil {
		return false
	}
	lifetime := leaf.NotAfter.Sub(leaf.NotBefore)
	threshold := leaf.NotBefore.Add(lifetime * 2 / 3)
	return time.Now().After(threshold)
}

// CheckExpiry logs a warning if leaf is expired or close to needing
// renewal; used once at server startup when TLS is configured.
func CheckExpiry(leaf *x509.Certificate) {
	if leaf == nil {
		return
	}
	if IsExpired(leaf) {
		log.Warn("TLS server certificate has expired", "notAfter", leaf.NotAfter)
		return
	}
	if NeedsRenewal(leaf) {
		log.Warn("TLS server certificate is approaching expiry", "notAfter", leaf.NotAfter)
	}
}
