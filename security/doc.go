// Package security builds client TLS configurations.
//
// TLSConfig is the file-backed form loaded from configuration. ClientOptions
// layers per-call overrides on top of a base *tls.Config: a replacement root
// pool, a server name and a custom hostname verifier that runs after the
// certificate chain has been verified.
//
//	cfg := security.TLSConfig{CAFile: "/etc/ssl/internal-ca.pem"}
//	base, err := cfg.Build()
//	conf := security.ClientOptions{Base: base, ServerName: host}.Build()
package security
