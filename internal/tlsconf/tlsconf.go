// Package tlsconf builds the mutual-TLS configurations used by the
// registry RPC transport (internal/rpcproto): a server side that requires
// and verifies client certificates, and a client side that presents a
// certificate and trusts a private CA. Flag defaults mirror
// rust-instance-manager/src/lib.rs's ServerArgs/ClientArgs exactly.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ServerPaths are the default TLS material locations for the registry
// server binary.
var ServerPaths = Paths{
	CAPath:   "/etc/ssl_certs/ca/tls.crt",
	CertPath: "/etc/ssl_certs/server/tls.crt",
	KeyPath:  "/etc/ssl_certs/server/tls.key",
}

// ClientPaths are the default TLS material locations for container and
// gateway binaries acting as registry clients.
var ClientPaths = Paths{
	CAPath:   "/etc/ssl_certs/ca/tls.crt",
	CertPath: "/etc/ssl_certs/client/tls.crt",
	KeyPath:  "/etc/ssl_certs/client/tls.key",
}

// Paths names the PEM files a mutual-TLS endpoint needs.
type Paths struct {
	CAPath   string
	CertPath string
	KeyPath  string
}

func loadCAPool(caPath string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: read CA %s: %w", caPath, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("tlsconf: no certificates parsed from %s", caPath)
	}
	return pool, nil
}

// ServerConfig builds a *tls.Config requiring and verifying client
// certificates against the given CA, with the server's own identity
// loaded from cert/key. Grounded in get_server_tls_config's
// ServerTlsConfig{identity, client_ca_root}.
func ServerConfig(p Paths) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(p.CertPath, p.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: load server cert/key: %w", err)
	}
	pool, err := loadCAPool(p.CAPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientConfig builds a *tls.Config presenting the client's own identity
// and trusting the private CA for the server certificate. Grounded in
// get_client_tls_config's ClientTlsConfig{identity, ca_certificate}.
func ClientConfig(p Paths) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(p.CertPath, p.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: load client cert/key: %w", err)
	}
	pool, err := loadCAPool(p.CAPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
