package tlsmaterial

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stanley-fork/unport/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	certsDir := filepath.Join(dir, "certs")
	cfg := &config.Config{
		CAKeyPath:    filepath.Join(dir, "ca.key"),
		CACertPath:   filepath.Join(dir, "ca.crt"),
		CertsDir:     certsDir,
		LeafKeyPath:  filepath.Join(certsDir, "localhost.key"),
		LeafCertPath: filepath.Join(certsDir, "localhost.crt"),
	}
	return New(cfg)
}

func loadLeafCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatalf("%s: no PEM block found", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}

func TestEnsureCACreatesKeyAndCert(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}
	if !fileExists(m.cfg.CAKeyPath) || !fileExists(m.cfg.CACertPath) {
		t.Fatal("expected CA key and cert to be written")
	}

	cert := loadLeafCert(t, m.cfg.CACertPath)
	if !cert.IsCA {
		t.Fatal("expected IsCA true on generated CA certificate")
	}
	if cert.Subject.CommonName != caCommonName {
		t.Fatalf("got CN %q, want %q", cert.Subject.CommonName, caCommonName)
	}
}

func TestEnsureCAIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA (1st): %v", err)
	}
	keyBefore, _ := os.ReadFile(m.cfg.CAKeyPath)

	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA (2nd): %v", err)
	}
	keyAfter, _ := os.ReadFile(m.cfg.CAKeyPath)

	if string(keyBefore) != string(keyAfter) {
		t.Fatal("expected EnsureCA to leave an existing CA untouched")
	}
}

func TestGenerateLeafWithExplicitDomains(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	domains := []string{"dashboard.localhost", "api.localhost"}
	if err := m.GenerateLeaf(domains); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	cert := loadLeafCert(t, m.cfg.LeafCertPath)
	names := map[string]bool{}
	for _, n := range cert.DNSNames {
		names[n] = true
	}
	for _, want := range append([]string{"localhost"}, domains...) {
		if !names[want] {
			t.Errorf("expected DNS SAN %q, got %v", want, cert.DNSNames)
		}
	}
}

func TestGenerateLeafIncludesLoopbackIP(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}
	if err := m.GenerateLeaf(nil); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	cert := loadLeafCert(t, m.cfg.LeafCertPath)
	found := false
	for _, ip := range cert.IPAddresses {
		if ip.String() == "127.0.0.1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 127.0.0.1 IP SAN, got %v", cert.IPAddresses)
	}
}

func TestGenerateLeafEmptyDomainsYieldsLocalhostOnly(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}
	if err := m.GenerateLeaf(nil); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	cert := loadLeafCert(t, m.cfg.LeafCertPath)
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "localhost" {
		t.Fatalf("got DNS names %v, want [localhost]", cert.DNSNames)
	}
}

func TestGenerateLeafManyDomains(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	domains := make([]string, 50)
	for i := range domains {
		domains[i] = fmt.Sprintf("service-%d.localhost", i)
	}
	if err := m.GenerateLeaf(domains); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	cert := loadLeafCert(t, m.cfg.LeafCertPath)
	if len(cert.DNSNames) != 51 {
		t.Fatalf("got %d DNS names, want 51", len(cert.DNSNames))
	}
}

func TestGenerateLeafDeduplicatesDomains(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	domains := []string{"api.localhost", "api.localhost", "web.localhost"}
	if err := m.GenerateLeaf(domains); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	cert := loadLeafCert(t, m.cfg.LeafCertPath)
	if len(cert.DNSNames) != 3 {
		t.Fatalf("got %d DNS names, want 3 (localhost, api.localhost, web.localhost)", len(cert.DNSNames))
	}
}

func TestGenerateLeafLongSubdomain(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}

	long := ""
	for i := 0; i < 63; i++ {
		long += "a"
	}
	domain := long + ".localhost"
	if err := m.GenerateLeaf([]string{domain}); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	cert := loadLeafCert(t, m.cfg.LeafCertPath)
	found := false
	for _, n := range cert.DNSNames {
		if n == domain {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected long subdomain %q in SANs, got %v", domain, cert.DNSNames)
	}
}

func TestLeafCertIssuerMatchesCASubject(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}
	if err := m.GenerateLeaf(nil); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	leaf := loadLeafCert(t, m.cfg.LeafCertPath)
	ca := loadLeafCert(t, m.cfg.CACertPath)

	if leaf.Issuer.CommonName != ca.Subject.CommonName {
		t.Fatalf("leaf issuer CN %q does not match CA subject CN %q", leaf.Issuer.CommonName, ca.Subject.CommonName)
	}
	if err := leaf.CheckSignatureFrom(ca); err != nil {
		t.Fatalf("leaf certificate is not validly signed by CA: %v", err)
	}
}

func TestClean(t *testing.T) {
	m := newTestManager(t)
	if err := m.EnsureCA(); err != nil {
		t.Fatalf("EnsureCA: %v", err)
	}
	if err := m.GenerateLeaf(nil); err != nil {
		t.Fatalf("GenerateLeaf: %v", err)
	}

	if err := m.Clean(); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if fileExists(m.cfg.LeafCertPath) || fileExists(m.cfg.LeafKeyPath) {
		t.Fatal("expected leaf cert/key to be removed by Clean")
	}
	if !fileExists(m.cfg.CACertPath) {
		t.Fatal("expected Clean to leave the CA intact")
	}
}
