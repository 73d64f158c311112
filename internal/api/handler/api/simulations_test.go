// internal/api/handler/api/simulations_test.go
package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/simulation"
)

func createSession(t *testing.T, h *SimulationsHandler, body string) *simulation.Session {
	t.Helper()
	w := httptest.NewRecorder()
	h.Create(w, jsonRequest("POST", "/api/v1/simulations", body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var s simulation.Session
	decodeData(t, w, &s)
	return &s
}

func trade(h *SimulationsHandler, id, body string) *httptest.ResponseRecorder {
	req := jsonRequest("POST", "/api/v1/simulations/"+id+"/trades", body)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.Trade(w, req)
	return w
}

func withID(method, target, id string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.SetPathValue("id", id)
	return req
}

func TestSimulationsHandler_Create(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))

	s := createSession(t, h, `{"instrument_code": "600519", "instrument_name": "Moutai", "total_days": 7}`)

	assert.Equal(t, "sim-1", s.ID)
	assert.Equal(t, simulation.StatusRunning, s.Status)
	assert.Equal(t, 100000.0, s.InitialCapital)
	assert.Equal(t, 7, s.TotalDays)
	assert.Equal(t, 0, s.CurrentDay)
}

func TestSimulationsHandler_Create_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{invalid json}`, "INVALID_PARAMETER"},
		{"unknown field", `{"instrument_code": "600519", "total_days": 7, "leverage": 2}`, "INVALID_PARAMETER"},
		{"missing code", `{"total_days": 7}`, "INVALID_PARAMETER"},
		{"too few days", `{"instrument_code": "600519", "total_days": 3}`, "INVALID_PARAMETER"},
		{"negative capital", `{"instrument_code": "600519", "total_days": 7, "initial_capital": -1}`, "INVALID_PARAMETER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSimulationsHandler(newTestApp(t))
			w := httptest.NewRecorder()
			h.Create(w, jsonRequest("POST", "/api/v1/simulations", tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestSimulationsHandler_Create_InsufficientHistory(t *testing.T) {
	h := NewSimulationsHandler(newTestAppWithBars(t, 5))
	w := httptest.NewRecorder()
	h.Create(w, jsonRequest("POST", "/api/v1/simulations", `{"instrument_code": "600519", "total_days": 7}`))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_HISTORY", errorCode(t, w))
}

func TestSimulationsHandler_Trade(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

	w := trade(h, s.ID, `{"kind": "buy", "price": 62, "quantity": 100, "reason": "breakout"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out app.TradeOutcome
	decodeData(t, w, &out)
	assert.Equal(t, simulation.TradeBuy, out.Trade.Kind)
	assert.Equal(t, 0, out.Trade.Day)
	assert.NotEmpty(t, out.Trade.Date)
	assert.Equal(t, int64(100), out.Session.Position)
	assert.Equal(t, 93800.0, out.Session.CurrentCapital)
	assert.Equal(t, 1, out.Session.CurrentDay)
}

func TestSimulationsHandler_Trade_KindIsCaseInsensitive(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

	w := trade(h, s.ID, `{"kind": "SKIP", "reason": "wait"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out app.TradeOutcome
	decodeData(t, w, &out)
	assert.Equal(t, simulation.TradeSkip, out.Trade.Kind)
}

func TestSimulationsHandler_Trade_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unknown kind", `{"kind": "short", "price": 62, "quantity": 100}`, http.StatusBadRequest, "INVALID_PARAMETER"},
		{"auto sell", `{"kind": "auto_sell", "price": 62, "quantity": 100}`, http.StatusBadRequest, "INVALID_PARAMETER"},
		{"zero price", `{"kind": "buy", "price": 0, "quantity": 100}`, http.StatusBadRequest, "INVALID_PARAMETER"},
		{"zero quantity", `{"kind": "buy", "price": 62, "quantity": 0}`, http.StatusBadRequest, "INVALID_PARAMETER"},
		{"bad date", `{"kind": "skip", "date": "01/02/2024"}`, http.StatusBadRequest, "INVALID_PARAMETER"},
		{"odd lot buy", `{"kind": "buy", "price": 62, "quantity": 150}`, http.StatusBadRequest, "INVALID_PARAMETER"},
		{"insufficient capital", `{"kind": "buy", "price": 62, "quantity": 10000}`, http.StatusConflict, "INSUFFICIENT_CAPITAL"},
		{"insufficient position", `{"kind": "sell", "price": 62, "quantity": 100}`, http.StatusConflict, "INSUFFICIENT_POSITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSimulationsHandler(newTestApp(t))
			s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

			w := trade(h, s.ID, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestSimulationsHandler_Trade_Paused(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

	w := httptest.NewRecorder()
	h.Pause(w, withID("POST", "/api/v1/simulations/"+s.ID+"/pause", s.ID))
	require.Equal(t, http.StatusOK, w.Code)

	w = trade(h, s.ID, `{"kind": "skip"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", errorCode(t, w))

	w = httptest.NewRecorder()
	h.Resume(w, withID("POST", "/api/v1/simulations/"+s.ID+"/resume", s.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var resumed simulation.Session
	decodeData(t, w, &resumed)
	assert.Equal(t, simulation.StatusRunning, resumed.Status)
}

func TestSimulationsHandler_PlayToCompletion(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

	w := trade(h, s.ID, `{"kind": "buy", "price": 62, "quantity": 100, "reason": "entry"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for i := 1; i < 7; i++ {
		w = trade(h, s.ID, `{"kind": "skip", "reason": "hold"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	var out app.TradeOutcome
	decodeData(t, w, &out)
	assert.Equal(t, simulation.StatusCompleted, out.Session.Status)
	assert.Equal(t, int64(0), out.Session.Position)
	require.NotNil(t, out.Session.FinalSettlementPrice)
	assert.Equal(t, 69.0, *out.Session.FinalSettlementPrice)

	w = httptest.NewRecorder()
	h.Result(w, withID("GET", "/api/v1/simulations/"+s.ID+"/result", s.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var view app.ResultView
	decodeData(t, w, &view)
	assert.Equal(t, 100700.0, view.Result.FinalCapital)
	assert.InDelta(t, 0.7, view.Result.ProfitRatePercent, 1e-9)
	assert.Equal(t, 2, view.Result.TotalTrades)

	w = trade(h, s.ID, `{"kind": "skip"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSimulationsHandler_GetNotFound(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))

	w := httptest.NewRecorder()
	h.Get(w, withID("GET", "/api/v1/simulations/missing", "missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, w))
}

func TestSimulationsHandler_List(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)
	second := createSession(t, h, `{"instrument_code": "000001", "total_days": 10}`)

	w := httptest.NewRecorder()
	h.Abandon(w, withID("POST", "/api/v1/simulations/"+second.ID+"/abandon", second.ID))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/v1/simulations", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var all []simulation.Session
	meta := decodeData(t, w, &all)
	assert.Len(t, all, 2)
	require.NotNil(t, meta.Count)
	assert.Equal(t, 2, *meta.Count)

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/v1/simulations?status=abandoned", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var abandoned []simulation.Session
	decodeData(t, w, &abandoned)
	require.Len(t, abandoned, 1)
	assert.Equal(t, second.ID, abandoned[0].ID)

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/v1/simulations?status=sleeping", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/v1/simulations?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimulationsHandler_Bars(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

	w := httptest.NewRecorder()
	h.Bars(w, withID("GET", "/api/v1/simulations/"+s.ID+"/bars", s.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var view app.BarsView
	decodeData(t, w, &view)
	require.NotEmpty(t, view.Bars)
	require.NotNil(t, view.Current)
	assert.Equal(t, 62.0, view.Current.Close)
	assert.Equal(t, view.Current.Date, view.Bars[len(view.Bars)-1].Date)
	assert.Contains(t, view.MA, "ma5")
}

func TestSimulationsHandler_Delete(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

	w := httptest.NewRecorder()
	h.Delete(w, withID("DELETE", "/api/v1/simulations/"+s.ID, s.ID))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Get(w, withID("GET", "/api/v1/simulations/"+s.ID, s.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.Delete(w, withID("DELETE", "/api/v1/simulations/"+s.ID, s.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSimulationsHandler_Review_NotConfigured(t *testing.T) {
	h := NewSimulationsHandler(newTestApp(t))
	s := createSession(t, h, `{"instrument_code": "600519", "total_days": 7}`)

	w := httptest.NewRecorder()
	h.Review(w, withID("POST", "/api/v1/simulations/"+s.ID+"/review", s.ID))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "CONFIG_MISSING", errorCode(t, w))
}
