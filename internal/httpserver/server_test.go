package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cogserve/cogserve/internal/config"
	"github.com/cogserve/cogserve/internal/telemetry"
)

func TestLivezAlwaysOK(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"*"}, MetricsPath: "/metrics"}
	srv := NewServer(cfg, telemetry.NewLogger("text", "error"), nil, nil, telemetry.NewMetricsRegistry())

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestReadyzOKWithNilReporter(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"*"}, MetricsPath: "/metrics"}
	srv := NewServer(cfg, telemetry.NewLogger("text", "error"), nil, nil, telemetry.NewMetricsRegistry())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestHealthEndpointReturnsDiagnostics(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"*"}, MetricsPath: "/metrics"}
	srv := NewServer(cfg, telemetry.NewLogger("text", "error"), nil, nil, telemetry.NewMetricsRegistry())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"*"}, MetricsPath: "/metrics"}
	srv := NewServer(cfg, telemetry.NewLogger("text", "error"), nil, nil, telemetry.NewMetricsRegistry())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}
