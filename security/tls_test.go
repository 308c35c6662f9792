package security

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/anyhttp/security/tlstest"
)

func TestTLSConfig_Build(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	tests := []struct {
		name    string
		cfg     *TLSConfig
		wantNil bool
		check   func(t *testing.T, c *tls.Config)
	}{
		{name: "nil", cfg: nil, wantNil: true},
		{name: "zero value", cfg: &TLSConfig{}, wantNil: true},
		{name: "skip verify keeps TLS 1.2 floor", cfg: &TLSConfig{SkipVerify: true}, check: func(t *testing.T, c *tls.Config) {
			if !c.InsecureSkipVerify || c.MinVersion != tls.VersionTLS12 {
				t.Errorf("expected skip verify with TLS 1.2, got %v %d", c.InsecureSkipVerify, c.MinVersion)
			}
		}},
		{name: "server name", cfg: &TLSConfig{ServerName: "api.internal"}, check: func(t *testing.T, c *tls.Config) {
			if c.ServerName != "api.internal" {
				t.Errorf("expected server name, got %q", c.ServerName)
			}
		}},
		{name: "min version strings", cfg: &TLSConfig{MinVersion: "1.1"}, check: func(t *testing.T, c *tls.Config) {
			if c.MinVersion != tls.VersionTLS11 {
				t.Errorf("expected TLS 1.1, got %d", c.MinVersion)
			}
		}},
		{name: "ca and client pair", cfg: &TLSConfig{CAFile: certs.CAFile, CertFile: certs.CertFile, KeyFile: certs.KeyFile, MinVersion: "1.3"},
			check: func(t *testing.T, c *tls.Config) {
				if c.RootCAs == nil || len(c.Certificates) != 1 || c.MinVersion != tls.VersionTLS13 {
					t.Errorf("unexpected config roots=%v certs=%d min=%d", c.RootCAs != nil, len(c.Certificates), c.MinVersion)
				}
			}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.cfg.Build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (got == nil) != tc.wantNil {
				t.Fatalf("expected nil=%v, got %v", tc.wantNil, got)
			}
			if tc.check != nil {
				tc.check(t, got)
			}
		})
	}
}

func TestTLSConfig_Build_Errors(t *testing.T) {
	tests := map[string]*TLSConfig{
		"missing ca file":     {CAFile: "/nonexistent/ca.pem"},
		"garbage ca file":     {CAFile: tlstest.WriteInvalidPEM(t, "bad-ca.pem")},
		"missing client pair": {CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"},
		"unknown min version": {MinVersion: "1.4"},
	}
	for name, cfg := range tests {
		if _, err := cfg.Build(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestTLSConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TLSConfig
		ok   bool
	}{
		{"nil", nil, true},
		{"pair", &TLSConfig{CertFile: "cert.pem", KeyFile: "key.pem"}, true},
		{"cert without key", &TLSConfig{CertFile: "cert.pem"}, false},
		{"key without cert", &TLSConfig{KeyFile: "key.pem"}, false},
		{"known min version", &TLSConfig{MinVersion: "1.0"}, true},
		{"numeric-looking min version", &TLSConfig{MinVersion: "12"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err == nil) != tc.ok {
				t.Errorf("expected ok=%v, got %v", tc.ok, err)
			}
		})
	}
}

func TestTLSConfig_IsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TLSConfig
		enabled bool
	}{
		{"nil", nil, false},
		{"zero", &TLSConfig{}, false},
		{"skip_verify", &TLSConfig{SkipVerify: true}, true},
		{"ca_file", &TLSConfig{CAFile: "ca.pem"}, true},
		{"server_name", &TLSConfig{ServerName: "example.com"}, true},
		{"min_version", &TLSConfig{MinVersion: "1.3"}, true},
	}
	for _, tc := range tests {
		if got := tc.cfg.IsEnabled(); got != tc.enabled {
			t.Errorf("%s: IsEnabled() = %v, want %v", tc.name, got, tc.enabled)
		}
	}
}

func TestLoadCertPool(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	srv.TLS = certs.ServerConfig()
	srv.StartTLS()
	defer srv.Close()

	pool, err := LoadCertPool(certs.CAFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
	}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("expected the loaded pool to trust the server: %v", err)
	}
	_ = resp.Body.Close()

	if _, err := LoadCertPool("/nonexistent/ca.pem"); err == nil {
		t.Error("expected missing file to fail")
	}
	if _, err := LoadCertPool(tlstest.WriteInvalidPEM(t, "junk.pem")); err == nil {
		t.Error("expected unparsable bundle to fail")
	}
}
