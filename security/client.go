package security

import (
	"crypto/tls"
	"crypto/x509"
)

// HostnameVerifier decides whether a verified connection may be used for host.
type HostnameVerifier func(host string, state tls.ConnectionState) error

// ClientOptions combines a base TLS configuration with call-level overrides.
type ClientOptions struct {
	// Base is cloned, never mutated. Nil means TLS 1.2+ with system roots.
	Base *tls.Config
	// RootCAs replaces Base.RootCAs when set.
	RootCAs *x509.CertPool
	// ServerName is used for SNI and verification when Base has none.
	ServerName string
	// VerifyHostname replaces the built-in hostname check. The chain is
	// still verified against the effective roots unless Base skips verification.
	VerifyHostname HostnameVerifier
}

// Build returns the effective client configuration.
func (o ClientOptions) Build() *tls.Config {
	var cfg *tls.Config
	if o.Base != nil {
		cfg = o.Base.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if o.RootCAs != nil {
		cfg.RootCAs = o.RootCAs
	}
	if cfg.ServerName == "" {
		cfg.ServerName = o.ServerName
	}
	if o.VerifyHostname == nil {
		return cfg
	}

	skipChain := cfg.InsecureSkipVerify
	roots := cfg.RootCAs
	host := cfg.ServerName
	verify := o.VerifyHostname
	next := cfg.VerifyConnection

	cfg.InsecureSkipVerify = true //nolint:gosec // chain verified in VerifyConnection
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if !skipChain {
			if err := verifyChain(cs, roots); err != nil {
				return err
			}
		}
		h := cs.ServerName
		if h == "" {
			h = host
		}
		if err := verify(h, cs); err != nil {
			return err
		}
		if next != nil {
			return next(cs)
		}
		return nil
	}
	return cfg
}

// verifyChain checks the peer chain without the hostname step.
func verifyChain(cs tls.ConnectionState, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}
	}
	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}
	if _, err := cs.PeerCertificates[0].Verify(opts); err != nil {
		return &tls.CertificateVerificationError{UnverifiedCertificates: cs.PeerCertificates, Err: err}
	}
	return nil
}
