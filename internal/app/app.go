// Package app orchestrates simulation sessions: it loads and saves them,
// supplies price series to the engine and publishes session events.
package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/config"
	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/journal"
	"github.com/newthinker/papertrader/internal/marketdata"
	"github.com/newthinker/papertrader/internal/metrics"
	"github.com/newthinker/papertrader/internal/review"
	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage"
	"github.com/newthinker/papertrader/internal/storage/session"
)

// Deps holds the collaborators of an App. Reviewer, Journal and Metrics
// are optional.
type Deps struct {
	Sessions session.Store
	Bars     marketdata.Provider
	Reviewer *review.Reviewer
	Journal  *journal.Journal
	Metrics  *metrics.Registry
	Engine   *simulation.Engine
	Logger   *zap.Logger
	Now      func() time.Time
}

// App is the main application orchestrator
type App struct {
	cfg      config.SimulationConfig
	engine   *simulation.Engine
	sessions session.Store
	bars     marketdata.Provider
	reviewer *review.Reviewer
	journal  *journal.Journal
	metrics  *metrics.Registry
	events   *Broker
	logger   *zap.Logger
	now      func() time.Time

	locks *keyedMutex
}

// New creates a new App instance
func New(cfg config.SimulationConfig, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Engine == nil {
		deps.Engine = simulation.NewEngine()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{
		cfg:      cfg,
		engine:   deps.Engine,
		sessions: deps.Sessions,
		bars:     deps.Bars,
		reviewer: deps.Reviewer,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		events:   NewBroker(),
		logger:   deps.Logger,
		now:      deps.Now,
		locks:    newKeyedMutex(),
	}
}

// Events returns the session event broker.
func (a *App) Events() *Broker {
	return a.events
}

// Journal returns the trade journal, nil when none is configured.
func (a *App) Journal() *journal.Journal {
	return a.journal
}

// ReviewEnabled reports whether an LLM reviewer is configured.
func (a *App) ReviewEnabled() bool {
	return a.reviewer != nil
}

func (a *App) publish(typ EventType, s *simulation.Session, t *simulation.Trade) {
	ev := Event{
		Type:      typ,
		SessionID: s.ID,
		Session:   s,
		Trade:     t,
		Time:      a.now(),
	}
	if n := a.events.Publish(ev); n > 0 {
		a.logger.Debug("event published",
			zap.String("session_id", s.ID),
			zap.String("type", string(typ)),
			zap.Int("subscribers", n),
		)
	}
}

// load fetches a session, mapping a missing record to ErrSessionNotFound.
func (a *App) load(ctx context.Context, id string) (*simulation.Session, error) {
	s, err := a.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, core.Errorf(core.ErrSessionNotFound, "session %s", id)
		}
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return s, nil
}

func (a *App) save(ctx context.Context, s *simulation.Session) error {
	if err := a.sessions.Save(ctx, s); err != nil {
		a.logger.Error("failed to save session", zap.String("session_id", s.ID), zap.Error(err))
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// mutate runs fn on a copy of the stored session under the session lock
// and saves the copy only when fn succeeds.
func (a *App) mutate(ctx context.Context, id string, fn func(s *simulation.Session) error) (*simulation.Session, error) {
	unlock := a.locks.Lock(id)
	defer unlock()

	stored, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s := stored.Clone()
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := a.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// series re-fetches the bars backing s, from bar 0 up to and including the
// settlement bar, and checks they still line up with the session.
func (a *App) series(ctx context.Context, s *simulation.Session) ([]core.PriceBar, error) {
	bars, err := a.bars.DailyBars(ctx, s.InstrumentCode, s.SeriesFrom, s.SettlementIndex()+1)
	if err != nil {
		return nil, err
	}
	if err := marketdata.Validate(bars); err != nil {
		return nil, err
	}
	start := s.PriceSeriesStartIndex
	if len(bars) <= start || bars[start].Date != s.StartDate {
		return nil, core.Errorf(core.ErrNoData,
			"price series for %s no longer lines up with session %s", s.InstrumentCode, s.ID)
	}
	return bars, nil
}

// settlementPrice returns the close of the bar after the simulated window.
func settlementPrice(s *simulation.Session, series []core.PriceBar) (float64, error) {
	idx := s.SettlementIndex()
	if idx >= len(series) {
		return 0, core.Errorf(core.ErrNoData, "settlement bar for session %s unavailable", s.ID)
	}
	return series[idx].Close, nil
}

func (a *App) recordRejected(err error) {
	if a.metrics == nil {
		return
	}
	var ce *core.Error
	code := "UNKNOWN"
	if errors.As(err, &ce) {
		code = ce.Code
	}
	a.metrics.RecordTradeRejected(code)
}

func (a *App) recordFinished(s *simulation.Session) {
	if a.metrics != nil {
		a.metrics.RecordSessionFinished(string(s.Status), s.FinalProfitRatePercent)
	}
}
