package util

import (
	"net/http"
	"net/url"
	"testing"
)

func newRequest(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return &http.Request{URL: u}
}

func TestNewProxyFunc_ExplicitProxies(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://sproxy:3128", "")

	got, err := fn(newRequest(t, "https://api.openai.com/v1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Host != "sproxy:3128" {
		t.Errorf("https should use the https proxy, got %v", got)
	}

	got, err = fn(newRequest(t, "http://localhost:11434/api"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Host != "proxy:3128" {
		t.Errorf("http should use the http proxy, got %v", got)
	}
}

func TestNewProxyFunc_NoProxyBypass(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "internal.example.com, localhost")

	got, err := fn(newRequest(t, "http://localhost:11434/api"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("bypassed host should go direct, got %v", got)
	}

	// Subdomains of a bypass entry go direct too
	got, _ = fn(newRequest(t, "http://svc.internal.example.com/"))
	if got != nil {
		t.Errorf("subdomain of bypassed host should go direct, got %v", got)
	}

	got, _ = fn(newRequest(t, "http://example.org/"))
	if got == nil {
		t.Error("non-bypassed host should use the proxy")
	}
}
