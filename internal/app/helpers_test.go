package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newthinker/papertrader/internal/config"
	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/llm"
	"github.com/newthinker/papertrader/internal/metrics"
	"github.com/newthinker/papertrader/internal/review"
	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage/session"
)

var seriesBase = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// barDate is the date of the i-th bar of fakeBars.
func barDate(i int) string {
	return seriesBase.AddDate(0, 0, i).Format(core.DateLayout)
}

// fakeBars serves n daily bars whose i-th close is 10+i.
type fakeBars struct {
	mu    sync.Mutex
	bars  []core.PriceBar
	calls int
	err   error
}

func newFakeBars(n int) *fakeBars {
	bars := make([]core.PriceBar, n)
	for i := range bars {
		c := 10 + float64(i)
		bars[i] = core.PriceBar{Date: barDate(i), Open: c - 0.5, Close: c, High: c + 1, Low: c - 1, Volume: 1000}
	}
	return &fakeBars{bars: bars}
}

func (f *fakeBars) Name() string { return "fake" }

func (f *fakeBars) DailyBars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []core.PriceBar
	for _, b := range f.bars {
		if b.Date >= from {
			out = append(out, b)
		}
	}
	if from == "" && len(out) > limit {
		return append([]core.PriceBar(nil), out[len(out)-limit:]...), nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]core.PriceBar(nil), out...), nil
}

type mockLLM struct {
	reply string
	got   llm.ChatRequest
}

func (m *mockLLM) Name() string { return "mock" }

func (m *mockLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.got = req
	return &llm.ChatResponse{Content: m.reply}, nil
}

func testConfig() config.SimulationConfig {
	return config.SimulationConfig{
		MinDays:        7,
		MaxDays:        50,
		LookbackBars:   30,
		DefaultCapital: 100000,
		BoardLot:       100,
	}
}

type fixture struct {
	app      *App
	bars     *fakeBars
	sessions *session.MemoryStore
	llm      *mockLLM
	metrics  *metrics.Registry
}

func newFixture(t *testing.T, nBars int) *fixture {
	t.Helper()
	f := &fixture{
		bars:     newFakeBars(nBars),
		sessions: session.NewMemoryStore(),
		llm:      &mockLLM{reply: `{"score": 72, "grade": "B", "analysis": "steady"}`},
		metrics:  metrics.NewRegistry(),
	}
	n := 0
	engine := simulation.NewEngine(simulation.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("sim-%d", n)
	}))
	f.app = New(testConfig(), Deps{
		Sessions: f.sessions,
		Bars:     f.bars,
		Reviewer: review.New(f.llm, nil, review.Config{}),
		Metrics:  f.metrics,
		Engine:   engine,
	})
	return f
}

// create starts a session of days over the fixture's bars. With 60 bars
// and 7 days, day 0 is bar 52 and the settlement bar is bar 59.
func (f *fixture) create(t *testing.T, days int) *simulation.Session {
	t.Helper()
	s, err := f.app.CreateSession(context.Background(), CreateInput{
		InstrumentCode: "600519",
		InstrumentName: "Moutai",
		TotalDays:      days,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) skip(t *testing.T, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.app.ExecuteTrade(context.Background(), id, TradeInput{Kind: simulation.TradeSkip, Reason: "wait"})
		require.NoError(t, err)
	}
}
