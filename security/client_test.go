package security

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kbukum/anyhttp/security/tlstest"
)

func newTLSServer(t *testing.T, certs *tlstest.TLSCerts) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = certs.ServerConfig()
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, conf *tls.Config, url string) error {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: conf}}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func TestClientOptions_Build_Defaults(t *testing.T) {
	conf := ClientOptions{ServerName: "example.com"}.Build()
	if conf.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected TLS 1.2 minimum, got %d", conf.MinVersion)
	}
	if conf.ServerName != "example.com" {
		t.Errorf("expected ServerName=example.com, got %q", conf.ServerName)
	}
	if conf.VerifyConnection != nil {
		t.Error("expected no VerifyConnection without a hostname verifier")
	}
}

func TestClientOptions_Build_DoesNotMutateBase(t *testing.T) {
	base := &tls.Config{MinVersion: tls.VersionTLS13}
	conf := ClientOptions{
		Base:           base,
		ServerName:     "example.com",
		VerifyHostname: func(string, tls.ConnectionState) error { return nil },
	}.Build()

	if base.ServerName != "" || base.InsecureSkipVerify || base.VerifyConnection != nil {
		t.Error("expected base config to be left untouched")
	}
	if conf.MinVersion != tls.VersionTLS13 {
		t.Errorf("expected base MinVersion to carry over, got %d", conf.MinVersion)
	}
}

func TestClientOptions_RootCAs(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	srv := newTLSServer(t, certs)

	if err := get(t, ClientOptions{}.Build(), srv.URL); err == nil {
		t.Fatal("expected failure without the test CA")
	}
	if err := get(t, ClientOptions{RootCAs: certs.CertPool}.Build(), srv.URL); err != nil {
		t.Fatalf("expected success with the test CA, got %v", err)
	}
}

func TestClientOptions_VerifyHostname_Accepts(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t, tlstest.WithDNSNames("internal.example"))
	srv := newTLSServer(t, certs)

	var gotHost atomic.Value
	conf := ClientOptions{
		RootCAs:    certs.CertPool,
		ServerName: "127.0.0.1",
		VerifyHostname: func(host string, _ tls.ConnectionState) error {
			gotHost.Store(host)
			return nil
		},
	}.Build()

	if err := get(t, conf, srv.URL); err != nil {
		t.Fatalf("expected custom verifier to accept mismatched name, got %v", err)
	}
	if gotHost.Load() != "127.0.0.1" {
		t.Errorf("expected verifier to see 127.0.0.1, got %v", gotHost.Load())
	}
}

func TestClientOptions_VerifyHostname_Rejects(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	srv := newTLSServer(t, certs)

	rejected := errors.New("host not allowed")
	conf := ClientOptions{
		RootCAs:        certs.CertPool,
		ServerName:     "127.0.0.1",
		VerifyHostname: func(string, tls.ConnectionState) error { return rejected },
	}.Build()

	if err := get(t, conf, srv.URL); err == nil {
		t.Fatal("expected verifier rejection to fail the handshake")
	}
}

func TestClientOptions_VerifyHostname_StillChecksChain(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	srv := newTLSServer(t, certs)

	conf := ClientOptions{
		ServerName:     "127.0.0.1",
		VerifyHostname: func(string, tls.ConnectionState) error { return nil },
	}.Build()

	err := get(t, conf, srv.URL)
	if err == nil {
		t.Fatal("expected untrusted chain to fail")
	}
	var verr *tls.CertificateVerificationError
	if !errors.As(err, &verr) {
		t.Errorf("expected CertificateVerificationError, got %T: %v", err, err)
	}
}

func TestClientOptions_ExpiredCertificate(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t, tlstest.WithExpired())
	srv := newTLSServer(t, certs)

	if err := get(t, ClientOptions{RootCAs: certs.CertPool}.Build(), srv.URL); err == nil {
		t.Fatal("expected expired certificate to be rejected")
	}
}
