package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	t.Cleanup(func() { SetMaxBodyBytes(0) })
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestCORSDisabledByDefault(t *testing.T) {
	if corsMiddleware() != nil {
		t.Fatalf("cors should be off unless configured")
	}
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestCORSEnabled(t *testing.T) {
	SetCORSOptions(true, []string{"http://example.com"}, nil, nil)
	t.Cleanup(func() { SetCORSOptions(false, nil, nil, nil) })
	r := NewMux(&mockService{})

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("preflight allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://other.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}
