package utils

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSFiles are paths to PEM files used to secure connections to redis & the worker API.
type TLSFiles struct {
	CACert string `long:"tls-ca-cert" env:"TLS_CA_CERT" description:"CA cert file"`
	Cert   string `long:"tls-cert" env:"TLS_CERT" description:"client/server cert file"`
	Key    string `long:"tls-key" env:"TLS_KEY" description:"client/server key file"`
}

// IsSet returns true if any file is configured.
func (f TLSFiles) IsSet() bool {
	return f.CACert != "" || f.Cert != "" || f.Key != ""
}

func setDefaults(cfg *tls.Config) {
	cfg.MinVersion = tls.VersionTLS12
	cfg.CurvePreferences = []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256}
	cfg.CipherSuites = []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	}
}

// TLSConfig builds a tls config from the given files, or returns nil if none are set.
func TLSConfig(files TLSFiles) (*tls.Config, error) {
	if !files.IsSet() {
		return nil, nil
	}
	if (files.Cert == "") != (files.Key == "") {
		return nil, fmt.Errorf("tls cert and key must be given together")
	}

	cfg := &tls.Config{}
	setDefaults(cfg)

	if files.Cert != "" {
		pair, err := tls.LoadX509KeyPair(files.Cert, files.Key)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	if files.CACert != "" {
		raw, err := os.ReadFile(files.CACert)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(raw) {
			return nil, fmt.Errorf("no certificates found in %s", files.CACert)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
