package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/indicator"
	"github.com/newthinker/papertrader/internal/marketdata"
	"github.com/newthinker/papertrader/internal/review"
	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage"
	"github.com/newthinker/papertrader/internal/storage/session"
)

// MovingAveragePeriods are the averages served with the visible bars.
var MovingAveragePeriods = []int{5, 10, 20}

// CreateInput describes a new session. A zero InitialCapital takes the
// configured default.
type CreateInput struct {
	InstrumentCode string
	InstrumentName string
	TotalDays      int
	InitialCapital float64
}

// CreateSession fetches the latest bars of the instrument and starts a
// session over them.
func (a *App) CreateSession(ctx context.Context, in CreateInput) (*simulation.Session, error) {
	code := core.NormalizeCode(in.InstrumentCode)
	if code == "" {
		return nil, core.Errorf(core.ErrInvalidParameter, "instrument code required")
	}
	if in.TotalDays < a.cfg.MinDays || in.TotalDays > a.cfg.MaxDays {
		return nil, core.Errorf(core.ErrInvalidParameter,
			"total days must be between %d and %d, got %d", a.cfg.MinDays, a.cfg.MaxDays, in.TotalDays)
	}
	capital := in.InitialCapital
	if capital == 0 {
		capital = a.cfg.DefaultCapital
	}

	limit := in.TotalDays + 1 + max(0, a.cfg.LookbackBars)
	series, err := a.bars.DailyBars(ctx, code, "", limit)
	if err != nil {
		return nil, err
	}
	if err := marketdata.Validate(series); err != nil {
		return nil, err
	}

	s, err := a.engine.Create(simulation.CreateParams{
		InstrumentCode: code,
		InstrumentName: in.InstrumentName,
		TotalDays:      in.TotalDays,
		InitialCapital: capital,
	}, series)
	if err != nil {
		return nil, err
	}
	if err := a.save(ctx, s); err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordSessionCreated()
	}
	a.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("instrument", s.InstrumentCode),
		zap.Int("total_days", s.TotalDays),
		zap.String("start_date", s.StartDate),
	)
	a.publish(EventCreated, s, nil)
	return s, nil
}

// ListSessions returns stored sessions, newest update first.
func (a *App) ListSessions(ctx context.Context, f session.Filter) ([]*simulation.Session, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, core.Errorf(core.ErrInvalidParameter, "unknown status %q", f.Status)
	}
	list, err := a.sessions.List(ctx, f)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return list, nil
}

// GetSession returns one session.
func (a *App) GetSession(ctx context.Context, id string) (*simulation.Session, error) {
	return a.load(ctx, id)
}

// DeleteSession removes a session in any state.
func (a *App) DeleteSession(ctx context.Context, id string) error {
	unlock := a.locks.Lock(id)
	defer unlock()

	if err := a.sessions.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Errorf(core.ErrSessionNotFound, "session %s", id)
		}
		return core.WrapError(core.ErrStorageFailed, err)
	}
	a.logger.Info("session deleted", zap.String("session_id", id))
	a.publish(EventDeleted, &simulation.Session{ID: id}, nil)
	return nil
}

// BarsView is what a trader sees on the current simulated day.
type BarsView struct {
	SessionID  string                `json:"session_id"`
	CurrentDay int                   `json:"current_day"`
	Bars       []core.PriceBar       `json:"bars"`
	Current    *core.PriceBar        `json:"current,omitempty"`
	MA         map[string][]*float64 `json:"ma"`
}

// Bars returns the visible window of a session with moving averages
// computed over it.
func (a *App) Bars(ctx context.Context, id string) (*BarsView, error) {
	s, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	series, err := a.series(ctx, s)
	if err != nil {
		return nil, err
	}

	window := simulation.VisibleWindow(s, series, a.cfg.LookbackBars)
	if s.Status != simulation.StatusCompleted && s.CurrentDay >= s.TotalDays && len(window) > 0 {
		// the settlement bar stays hidden until the session is settled
		window = window[:len(window)-1]
	}
	view := &BarsView{
		SessionID:  s.ID,
		CurrentDay: s.CurrentDay,
		Bars:       window,
		MA:         make(map[string][]*float64, len(MovingAveragePeriods)),
	}
	if s.CurrentDay < s.TotalDays {
		if bar, ok := simulation.CurrentBar(s, series); ok {
			view.Current = &bar
		}
	}
	for p, values := range indicator.MovingAverages(core.Closes(window), MovingAveragePeriods...) {
		view.MA[fmt.Sprintf("ma%d", p)] = values
	}
	return view, nil
}

// TradeInput is one day's decision as submitted by a client. An empty
// Date takes the current simulated day's date.
type TradeInput struct {
	Kind     simulation.TradeKind
	Price    float64
	Quantity int64
	Reason   string
	Date     string
}

// TradeOutcome is the executed trade and the session after it.
type TradeOutcome struct {
	Trade   *simulation.Trade   `json:"trade"`
	Session *simulation.Session `json:"session"`
}

// ExecuteTrade applies a trade to the session and advances it by a day.
// On the final day the settlement bar is looked up and passed along so
// the engine can complete the session.
func (a *App) ExecuteTrade(ctx context.Context, id string, in TradeInput) (*TradeOutcome, error) {
	var trade *simulation.Trade
	s, err := a.mutate(ctx, id, func(s *simulation.Session) error {
		if err := a.checkLot(in); err != nil {
			return err
		}
		if s.Status != simulation.StatusRunning {
			return core.Errorf(core.ErrInvalidStateTransition, "cannot trade a %s session", s.Status)
		}
		series, err := a.series(ctx, s)
		if err != nil {
			return err
		}

		req := simulation.TradeRequest{
			Kind:     in.Kind,
			Price:    in.Price,
			Quantity: in.Quantity,
			Reason:   in.Reason,
			Date:     in.Date,
		}
		if bar, ok := simulation.CurrentBar(s, series); ok {
			if req.Date == "" {
				req.Date = bar.Date
			} else if req.Date != bar.Date {
				return core.Errorf(core.ErrInvalidParameter,
					"trade date %s is not the simulated day %s", req.Date, bar.Date)
			}
		}
		if s.IsFinalDay() {
			if req.SettlementPrice, err = settlementPrice(s, series); err != nil {
				return err
			}
		}

		trade, err = a.engine.ExecuteTrade(s, req)
		return err
	})
	if err != nil {
		a.recordRejected(err)
		a.logger.Debug("trade rejected", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordTrade(string(trade.Kind))
	}
	a.logger.Info("trade executed",
		zap.String("session_id", s.ID),
		zap.Int("day", trade.Day),
		zap.String("kind", string(trade.Kind)),
		zap.Int64("quantity", trade.Quantity),
		zap.Float64("price", trade.Price),
	)
	a.publish(EventTraded, s, trade)
	if s.Status == simulation.StatusCompleted {
		a.finished(s)
	}
	return &TradeOutcome{Trade: trade, Session: s}, nil
}

// checkLot enforces the board lot on buys. Sells may close an odd
// remainder.
func (a *App) checkLot(in TradeInput) error {
	if in.Kind != simulation.TradeBuy || a.cfg.BoardLot <= 1 {
		return nil
	}
	if in.Quantity%a.cfg.BoardLot != 0 {
		return core.Errorf(core.ErrInvalidParameter,
			"buy quantity %d is not a multiple of the board lot %d", in.Quantity, a.cfg.BoardLot)
	}
	return nil
}

// PauseSession suspends a running session.
func (a *App) PauseSession(ctx context.Context, id string) (*simulation.Session, error) {
	s, err := a.mutate(ctx, id, a.engine.Pause)
	if err != nil {
		return nil, err
	}
	a.logger.Info("session paused", zap.String("session_id", id))
	a.publish(EventPaused, s, nil)
	return s, nil
}

// ResumeSession continues a paused session.
func (a *App) ResumeSession(ctx context.Context, id string) (*simulation.Session, error) {
	s, err := a.mutate(ctx, id, a.engine.Resume)
	if err != nil {
		return nil, err
	}
	a.logger.Info("session resumed", zap.String("session_id", id))
	a.publish(EventResumed, s, nil)
	return s, nil
}

// AbandonSession ends a session without settlement.
func (a *App) AbandonSession(ctx context.Context, id string) (*simulation.Session, error) {
	s, err := a.mutate(ctx, id, a.engine.Abandon)
	if err != nil {
		return nil, err
	}
	a.finished(s)
	return s, nil
}

// CompleteSession settles a session whose days are exhausted but which was
// never completed. Completed sessions are returned unchanged.
func (a *App) CompleteSession(ctx context.Context, id string) (*simulation.Session, error) {
	already := false
	s, err := a.mutate(ctx, id, func(s *simulation.Session) error {
		if s.Status == simulation.StatusCompleted {
			already = true
			return nil
		}
		price := 0.0
		if s.CurrentDay >= s.TotalDays {
			series, err := a.series(ctx, s)
			if err != nil {
				return err
			}
			if price, err = settlementPrice(s, series); err != nil {
				return err
			}
		}
		_, err := a.engine.Complete(s, price)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !already {
		a.finished(s)
	}
	return s, nil
}

func (a *App) finished(s *simulation.Session) {
	a.recordFinished(s)
	fields := []zap.Field{
		zap.String("session_id", s.ID),
		zap.String("status", string(s.Status)),
		zap.Float64("capital", s.CurrentCapital),
	}
	if s.FinalProfitRatePercent != nil {
		fields = append(fields, zap.Float64("profit_rate", *s.FinalProfitRatePercent))
	}
	a.logger.Info("session finished", fields...)

	typ := EventAbandoned
	if s.Status == simulation.StatusCompleted {
		typ = EventCompleted
	}
	a.publish(typ, s, nil)
}

// ResultView pairs a session with its analysis.
type ResultView struct {
	Session *simulation.Session `json:"session"`
	Result  simulation.Result   `json:"result"`
}

// Result analyses a session in any state. A completed session is valued at
// its settlement price, any other at the close of its current bar.
func (a *App) Result(ctx context.Context, id string) (*ResultView, error) {
	s, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	var series []core.PriceBar
	if needsSeries(s) {
		if series, err = a.series(ctx, s); err != nil {
			return nil, err
		}
	}
	price, err := valuationPrice(s, series)
	if err != nil {
		return nil, err
	}
	return &ResultView{Session: s, Result: simulation.CalculateResult(s, price)}, nil
}

// needsSeries reports whether valuing s requires its price series.
func needsSeries(s *simulation.Session) bool {
	if s.Status == simulation.StatusCompleted && s.FinalSettlementPrice != nil {
		return false
	}
	return s.Position > 0
}

func valuationPrice(s *simulation.Session, series []core.PriceBar) (float64, error) {
	if s.Status == simulation.StatusCompleted && s.FinalSettlementPrice != nil {
		return *s.FinalSettlementPrice, nil
	}
	if s.Position == 0 {
		return 0, nil
	}
	bar, ok := simulation.CurrentBar(s, series)
	if !ok {
		return 0, core.Errorf(core.ErrNoData, "no bar for day %d of session %s", s.CurrentDay, s.ID)
	}
	return bar.Close, nil
}

// ReviewView pairs a session review with the analysis it was based on.
type ReviewView struct {
	SessionID string            `json:"session_id"`
	Result    simulation.Result `json:"result"`
	Review    *review.Review    `json:"review"`
}

// Review grades a session with the configured LLM. Only the bars the
// session may disclose are shown to the model.
func (a *App) Review(ctx context.Context, id string) (*ReviewView, error) {
	if a.reviewer == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "no llm provider configured")
	}
	s, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	series, err := a.series(ctx, s)
	if err != nil {
		return nil, err
	}

	price, err := valuationPrice(s, series)
	if err != nil {
		return nil, err
	}
	result := simulation.CalculateResult(s, price)

	bars := simulation.SimulatedBars(s, series)
	if s.Status != simulation.StatusCompleted && len(bars) > s.TotalDays {
		bars = bars[:s.TotalDays]
	}

	start := time.Now()
	rv, err := a.reviewer.Review(ctx, review.Request{Session: s, Result: result, Bars: bars})
	if a.metrics != nil {
		a.metrics.RecordReview(a.reviewer.Provider(), err, time.Since(start).Seconds())
	}
	if err != nil {
		a.logger.Error("review failed", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.RecordReviewTokens(rv.Provider, rv.Usage.InputTokens, rv.Usage.OutputTokens)
	}
	a.logger.Info("session reviewed",
		zap.String("session_id", id),
		zap.Int("score", rv.Score),
		zap.String("grade", string(rv.Grade)),
		zap.Int("input_tokens", rv.Usage.InputTokens),
		zap.Int("output_tokens", rv.Usage.OutputTokens),
		zap.Bool("truncated", rv.Truncated),
	)
	return &ReviewView{SessionID: s.ID, Result: result, Review: rv}, nil
}
