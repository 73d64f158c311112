package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegistry_HTTPMetrics(t *testing.T) {
	reg := NewRegistry()

	// Verify HTTP metrics are registered
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_RecordRequest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("GET", "/api/v1/simulations", 200, 0.05)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected http_requests_total metric")
	}
}

func TestRegistry_RecordRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reg := NewRegistry()
			reg.RecordRequest("GET", "/test", tt.status, 0.01)

			mfs, err := reg.Gather()
			if err != nil {
				t.Fatalf("gather failed: %v", err)
			}

			found := false
			for _, mf := range mfs {
				if mf.GetName() == "http_requests_total" {
					for _, m := range mf.GetMetric() {
						for _, label := range m.GetLabel() {
							if label.GetName() == "status" && label.GetValue() == tt.expected {
								found = true
							}
						}
					}
				}
			}
			if !found {
				t.Errorf("expected status label %s for status code %d", tt.expected, tt.status)
			}
		})
	}
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()

	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_in_flight" {
			found = true
			for _, m := range mf.GetMetric() {
				if m.GetGauge().GetValue() != 1 {
					t.Errorf("expected in-flight gauge to be 1, got %v", m.GetGauge().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_requests_in_flight metric")
	}
}

func TestRegistry_DurationHistogram(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("POST", "/api/v1/simulations/sim-1/trades", 200, 0.123)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_request_duration_seconds" {
			found = true
			for _, m := range mf.GetMetric() {
				hist := m.GetHistogram()
				if hist.GetSampleCount() != 1 {
					t.Errorf("expected sample count 1, got %d", hist.GetSampleCount())
				}
				if hist.GetSampleSum() < 0.12 || hist.GetSampleSum() > 0.13 {
					t.Errorf("expected sample sum ~0.123, got %v", hist.GetSampleSum())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_request_duration_seconds metric")
	}
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	reg := NewRegistry()
	var _ prometheus.Gatherer = reg
}

func counterValue(t *testing.T, reg *Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, label := range m.GetLabel() {
				if labels[label.GetName()] == label.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRegistry_BusinessMetrics(t *testing.T) {
	reg := NewRegistry()

	reg.RecordSessionCreated()
	reg.RecordTrade("BUY")
	reg.RecordTrade("BUY")
	reg.RecordTrade("SELL")
	reg.RecordTradeRejected("INSUFFICIENT_CAPITAL")
	rate := 9.25
	reg.RecordSessionFinished("COMPLETED", &rate)
	reg.RecordSessionFinished("ABANDONED", nil)
	reg.RecordMarketData("cache", nil)
	reg.RecordMarketData("eastmoney", errors.New("boom"))
	reg.RecordReview("claude", nil, 1.5)
	reg.RecordReviewTokens("claude", 1200, 300)

	if v := counterValue(t, reg, "papertrader_sessions_created_total", nil); v != 1 {
		t.Errorf("sessions created = %v, want 1", v)
	}
	if v := counterValue(t, reg, "papertrader_trades_total", map[string]string{"kind": "BUY"}); v != 2 {
		t.Errorf("buy trades = %v, want 2", v)
	}
	if v := counterValue(t, reg, "papertrader_trades_rejected_total", map[string]string{"code": "INSUFFICIENT_CAPITAL"}); v != 1 {
		t.Errorf("rejections = %v, want 1", v)
	}
	if v := counterValue(t, reg, "papertrader_sessions_finished_total", map[string]string{"status": "ABANDONED"}); v != 1 {
		t.Errorf("abandoned = %v, want 1", v)
	}
	if v := counterValue(t, reg, "papertrader_marketdata_requests_total", map[string]string{"source": "eastmoney", "status": "error"}); v != 1 {
		t.Errorf("eastmoney errors = %v, want 1", v)
	}
	if v := counterValue(t, reg, "papertrader_reviews_total", map[string]string{"provider": "claude", "status": "ok"}); v != 1 {
		t.Errorf("reviews = %v, want 1", v)
	}
	if v := counterValue(t, reg, "papertrader_review_tokens_total", map[string]string{"provider": "claude", "direction": "output"}); v != 300 {
		t.Errorf("output tokens = %v, want 300", v)
	}

	mfs, _ := reg.Gather()
	for _, mf := range mfs {
		if mf.GetName() == "papertrader_final_profit_rate_percent" {
			if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
				t.Errorf("profit rate samples = %d, want 1", got)
			}
		}
	}
}

func TestRegistry_StreamClients(t *testing.T) {
	reg := NewRegistry()
	reg.StreamClientInc()
	reg.StreamClientInc()
	reg.StreamClientDec()

	mfs, _ := reg.Gather()
	for _, mf := range mfs {
		if mf.GetName() == "papertrader_stream_clients" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 1 {
				t.Errorf("stream clients = %v, want 1", v)
			}
			return
		}
	}
	t.Error("expected papertrader_stream_clients metric")
}
