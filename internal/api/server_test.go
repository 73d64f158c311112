// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/config"
	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/metrics"
	"github.com/newthinker/papertrader/internal/storage/session"
)

// flatBars serves 60 daily bars from 2024-01-01, all at 10.
type flatBars struct{}

func (flatBars) Name() string { return "flat" }

func (flatBars) DailyBars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []core.PriceBar
	for i := 0; i < 60; i++ {
		date := base.AddDate(0, 0, i).Format(core.DateLayout)
		if date >= from {
			out = append(out, core.PriceBar{Date: date, Open: 10, Close: 10, High: 10, Low: 10})
		}
	}
	if from == "" && len(out) > limit {
		return out[len(out)-limit:], nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func testDeps(reg *metrics.Registry) Dependencies {
	return Dependencies{
		App: app.New(config.Defaults().Simulation, app.Deps{
			Sessions: session.NewMemoryStore(),
			Bars:     flatBars{},
			Metrics:  reg,
		}),
		Metrics: reg,
	}
}

func TestServer_Health(t *testing.T) {
	srv, err := NewServer(Config{
		Host: "localhost",
		Port: 0,
	}, testDeps(nil), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestServer_RequiresApp(t *testing.T) {
	if _, err := NewServer(Config{}, Dependencies{}, zap.NewNop()); err == nil {
		t.Error("expected error without app")
	}
}

func TestServer_APIAuth_Required(t *testing.T) {
	srv, _ := NewServer(Config{
		Host:   "localhost",
		Port:   0,
		APIKey: "test-key",
	}, testDeps(nil), zap.NewNop())

	// Without API key
	req := httptest.NewRequest("GET", "/api/v1/simulations", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	// Health stays open
	req = httptest.NewRequest("GET", "/api/health", nil)
	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for health, got %d", w.Code)
	}
}

func TestServer_APIAuth_ValidKey(t *testing.T) {
	srv, _ := NewServer(Config{
		Host:   "localhost",
		Port:   0,
		APIKey: "test-key",
	}, testDeps(nil), zap.NewNop())

	// With API key
	req := httptest.NewRequest("GET", "/api/v1/simulations", nil)
	req.Header.Set("X-API-Key", "test-key")
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}

func TestServer_APIAuth_Disabled(t *testing.T) {
	// Empty APIKey = disabled auth
	srv, _ := NewServer(Config{
		Host:   "localhost",
		Port:   0,
		APIKey: "",
	}, testDeps(nil), zap.NewNop())

	req := httptest.NewRequest("GET", "/api/v1/simulations", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with disabled auth, got %d", w.Code)
	}
}

func TestServer_Routes(t *testing.T) {
	srv, _ := NewServer(Config{Host: "localhost", Port: 0}, testDeps(nil), zap.NewNop())
	h := srv.Handler()

	body := bytes.NewBufferString(`{"instrument_code": "600519", "total_days": 7}`)
	req := httptest.NewRequest("POST", "/api/v1/simulations", body)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}

	req = httptest.NewRequest("PATCH", "/api/v1/simulations", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}

	// No journal configured
	req = httptest.NewRequest("GET", "/api/v1/journal/trades", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without journal, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := metrics.NewRegistry()
	srv, _ := NewServer(Config{Host: "localhost", Port: 0}, testDeps(reg), zap.NewNop())
	h := srv.Handler()

	req := httptest.NewRequest("POST", "/api/v1/simulations",
		bytes.NewBufferString(`{"instrument_code": "600519", "total_days": 7}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	out := w.Body.String()
	if !strings.Contains(out, "papertrader_sessions_created_total 1") {
		t.Errorf("expected created counter in metrics output")
	}
	if !strings.Contains(out, `path="POST /api/v1/simulations"`) {
		t.Errorf("expected route pattern label in metrics output")
	}
}
