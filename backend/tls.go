package backend

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
)

// TLSFiles names the PEM files for mutual TLS.
type TLSFiles struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// Enabled reports whether any file is set.
func (f TLSFiles) Enabled() bool {
	return f.CertFile != "" || f.KeyFile != "" || f.CAFile != ""
}

// LoadTLSConfig builds a TLS 1.3 client config presenting the client
// certificate and trusting only the given CA.
func LoadTLSConfig(files TLSFiles) (*tls.Config, error) {
	if files.CertFile == "" {
		return nil, errors.New("tls: cert file required")
	}
	if files.KeyFile == "" {
		return nil, errors.New("tls: key file required")
	}
	if files.CAFile == "" {
		return nil, errors.New("tls: CA file required")
	}

	clientCert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tls: load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(files.CAFile)
	if err != nil {
		return nil, fmt.Errorf("tls: read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("tls: failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// BuildHTTP2Client returns an HTTP/2-only client for the REST surface.
func BuildHTTP2Client(cfg *tls.Config, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: &http2.Transport{TLSClientConfig: cfg},
		Timeout:   timeout,
	}
}

// BuildHandshakeClient returns an HTTP/1.1 client for the websocket
// upgrade, which HTTP/2 transports cannot perform. No overall timeout is
// set because the hijacked connection outlives the request.
func BuildHandshakeClient(cfg *tls.Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:   cfg.Clone(),
			ForceAttemptHTTP2: false,
			Proxy:             http.ProxyFromEnvironment,
		},
	}
}
