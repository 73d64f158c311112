package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/papertrader/internal/api/response"
	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/config"
	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/journal"
	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage/session"
)

// seriesBars serves n daily bars from 2024-01-01 whose i-th close is 10+i.
type seriesBars struct {
	bars []core.PriceBar
}

func newSeriesBars(n int) *seriesBars {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.PriceBar, n)
	for i := range bars {
		c := 10 + float64(i)
		bars[i] = core.PriceBar{
			Date:  base.AddDate(0, 0, i).Format(core.DateLayout),
			Open:  c,
			Close: c,
			High:  c + 1,
			Low:   c - 1,
		}
	}
	return &seriesBars{bars: bars}
}

func (s *seriesBars) Name() string { return "series" }

func (s *seriesBars) DailyBars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error) {
	var out []core.PriceBar
	for _, b := range s.bars {
		if b.Date >= from {
			out = append(out, b)
		}
	}
	if from == "" && len(out) > limit {
		out = out[len(out)-limit:]
	} else if len(out) > limit {
		out = out[:limit]
	}
	return append([]core.PriceBar(nil), out...), nil
}

// newTestApp returns an app over 60 bars. A 7 day session starts at close
// 62 and settles at close 69.
func newTestApp(t *testing.T) *app.App {
	t.Helper()
	return newTestAppWithBars(t, 60)
}

func newTestAppWithBars(t *testing.T, nBars int) *app.App {
	t.Helper()
	n := 0
	engine := simulation.NewEngine(simulation.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("sim-%d", n)
	}))
	n2 := 0
	j := journal.New(journal.NewMemoryStore(), journal.WithIDGenerator(func() string {
		n2++
		return fmt.Sprintf("rec-%d", n2)
	}))
	return app.New(config.SimulationConfig{
		MinDays:        7,
		MaxDays:        50,
		LookbackBars:   30,
		DefaultCapital: 100000,
		BoardLot:       100,
	}, app.Deps{
		Sessions: session.NewMemoryStore(),
		Bars:     newSeriesBars(nBars),
		Journal:  j,
		Engine:   engine,
	})
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeData unmarshals the data member of a success envelope into v.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) response.Meta {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
		Meta response.Meta   `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decoding data %q: %v", env.Data, err)
	}
	return env.Meta
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response %q: %v", w.Body.String(), err)
	}
	return resp.Error.Code
}
