package simulation

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/position"
)

// Bounds on the number of simulated trading days.
const (
	MinTotalDays = 7
	MaxTotalDays = 50
)

// CreateParams holds the inputs of a new session
type CreateParams struct {
	InstrumentCode string
	InstrumentName string
	TotalDays      int
	InitialCapital float64
}

// TradeRequest is one day's decision.
type TradeRequest struct {
	Kind     TradeKind
	Price    float64
	Quantity int64
	Reason   string
	Date     string

	// SettlementPrice closes any residual position when this trade ends
	// the session. The caller reads it from the bar after the window;
	// it is required on the final day and ignored otherwise.
	SettlementPrice float64
}

// Engine drives sessions through their lifecycle.
//
// Every method is a synchronous transform of the session it is given.
// Methods validate everything before touching the session, so an error
// always leaves it unchanged. The engine holds no locks: callers must
// serialise operations on the same session.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// Option customises an Engine
type Option func(*Engine)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates an Engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create starts a session over the last TotalDays+1 bars of series. The
// final bar is held back as the settlement reference.
func (e *Engine) Create(p CreateParams, series []core.PriceBar) (*Session, error) {
	if p.InstrumentCode == "" {
		return nil, core.Errorf(core.ErrInvalidParameter, "instrument code required")
	}
	if p.TotalDays < MinTotalDays || p.TotalDays > MaxTotalDays {
		return nil, core.Errorf(core.ErrInvalidParameter,
			"total days must be between %d and %d, got %d", MinTotalDays, MaxTotalDays, p.TotalDays)
	}
	if !positive(p.InitialCapital) {
		return nil, core.Errorf(core.ErrInvalidParameter,
			"initial capital must be positive, got %.2f", p.InitialCapital)
	}
	if len(series) < p.TotalDays+1 {
		return nil, core.Errorf(core.ErrInsufficientHistory,
			"need at least %d bars, got %d", p.TotalDays+1, len(series))
	}

	start := len(series) - p.TotalDays - 1
	now := e.now()

	return &Session{
		ID:                    e.newID(),
		InstrumentCode:        p.InstrumentCode,
		InstrumentName:        p.InstrumentName,
		StartDate:             series[start].Date,
		EndDate:               series[start+p.TotalDays-1].Date,
		TotalDays:             p.TotalDays,
		InitialCapital:        p.InitialCapital,
		CurrentCapital:        p.InitialCapital,
		Status:                StatusRunning,
		Trades:                []Trade{},
		PriceSeriesStartIndex: start,
		SeriesFrom:            series[0].Date,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// ExecuteTrade applies one day's decision and advances the session by a
// day. When that exhausts the day count the session is completed at
// req.SettlementPrice.
func (e *Engine) ExecuteTrade(s *Session, req TradeRequest) (*Trade, error) {
	if s.Status != StatusRunning {
		return nil, core.Errorf(core.ErrInvalidStateTransition, "cannot trade a %s session", s.Status)
	}
	if s.CurrentDay >= s.TotalDays {
		return nil, core.Errorf(core.ErrInvalidStateTransition, "no simulated days remaining")
	}
	if err := validateTrade(s, req); err != nil {
		return nil, err
	}
	final := s.IsFinalDay()
	if final && !positive(req.SettlementPrice) {
		return nil, core.WrapError(core.ErrSettlementRequired, nil)
	}

	holding := position.Holding{
		Quantity:  s.Position,
		CostBasis: s.CostBasis,
		TotalCost: s.CostBasis * float64(s.Position),
	}
	trade := Trade{
		Day:    s.CurrentDay,
		Date:   req.Date,
		Kind:   req.Kind,
		Reason: req.Reason,
	}

	switch req.Kind {
	case TradeBuy:
		holding = holding.Apply(position.Fill{Side: position.SideBuy, Price: req.Price, Quantity: req.Quantity})
		s.CurrentCapital -= req.Price * float64(req.Quantity)
		trade.Price, trade.Quantity = req.Price, req.Quantity
	case TradeSell:
		holding = holding.Apply(position.Fill{Side: position.SideSell, Price: req.Price, Quantity: req.Quantity})
		s.CurrentCapital += req.Price * float64(req.Quantity)
		trade.Price, trade.Quantity = req.Price, req.Quantity
	}
	s.Position = holding.Quantity
	s.CostBasis = holding.CostBasis

	trade.CapitalAfter = s.CurrentCapital
	trade.PositionAfter = s.Position
	s.Trades = append(s.Trades, trade)
	s.CurrentDay++
	s.UpdatedAt = e.now()

	if final {
		e.settle(s, req.SettlementPrice)
	}
	return &trade, nil
}

func validateTrade(s *Session, req TradeRequest) error {
	switch req.Kind {
	case TradeSkip:
		return nil
	case TradeBuy, TradeSell:
	default:
		return core.Errorf(core.ErrInvalidParameter, "unknown trade kind %q", req.Kind)
	}
	if !positive(req.Price) {
		return core.Errorf(core.ErrInvalidParameter, "price must be positive, got %.4f", req.Price)
	}
	if req.Quantity <= 0 {
		return core.Errorf(core.ErrInvalidParameter, "quantity must be positive, got %d", req.Quantity)
	}

	if req.Kind == TradeBuy {
		if cost := req.Price * float64(req.Quantity); cost > s.CurrentCapital {
			return core.Errorf(core.ErrInsufficientCapital,
				"cost %.2f exceeds available capital %.2f", cost, s.CurrentCapital)
		}
		return nil
	}
	if req.Quantity > s.Position {
		return core.Errorf(core.ErrInsufficientPosition,
			"selling %d shares, holding %d", req.Quantity, s.Position)
	}
	return nil
}

// Complete settles a session whose days are exhausted: any residual
// position is sold at settlementPrice and the final profit rate recorded.
// Completing an already completed session returns it unchanged.
func (e *Engine) Complete(s *Session, settlementPrice float64) (*Session, error) {
	switch {
	case s.Status == StatusCompleted:
		return s, nil
	case s.Status == StatusAbandoned:
		return nil, core.Errorf(core.ErrInvalidStateTransition, "cannot complete an abandoned session")
	case s.CurrentDay < s.TotalDays:
		return nil, core.Errorf(core.ErrInvalidStateTransition,
			"%d simulated days remaining", s.DaysRemaining())
	case !positive(settlementPrice):
		return nil, core.WrapError(core.ErrSettlementRequired, nil)
	}
	e.settle(s, settlementPrice)
	return s, nil
}

// positive reports whether v is a finite amount above zero. NaN fails.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func (e *Engine) settle(s *Session, settlementPrice float64) {
	if s.Position > 0 {
		qty := s.Position
		s.CurrentCapital += settlementPrice * float64(qty)
		s.Position = 0
		s.CostBasis = 0
		s.Trades = append(s.Trades, Trade{
			Day:           s.CurrentDay,
			Date:          s.EndDate,
			Kind:          TradeAutoSell,
			Price:         settlementPrice,
			Quantity:      qty,
			Reason:        "auto liquidation at simulation end",
			CapitalAfter:  s.CurrentCapital,
			PositionAfter: 0,
		})
	}

	price := settlementPrice
	rate := round2((s.CurrentCapital - s.InitialCapital) / s.InitialCapital * 100)
	s.FinalSettlementPrice = &price
	s.FinalProfitRatePercent = &rate
	s.Status = StatusCompleted
	s.UpdatedAt = e.now()
}

// Pause suspends a running session.
func (e *Engine) Pause(s *Session) error {
	return e.transition(s, StatusPaused, StatusRunning)
}

// Resume continues a paused session.
func (e *Engine) Resume(s *Session) error {
	return e.transition(s, StatusRunning, StatusPaused)
}

// Abandon ends a running or paused session without settlement. Capital
// and position are left as they are.
func (e *Engine) Abandon(s *Session) error {
	return e.transition(s, StatusAbandoned, StatusRunning, StatusPaused)
}

func (e *Engine) transition(s *Session, to Status, from ...Status) error {
	for _, f := range from {
		if s.Status == f {
			s.Status = to
			s.UpdatedAt = e.now()
			return nil
		}
	}
	return core.WrapError(core.ErrInvalidStateTransition,
		fmt.Errorf("%s -> %s", s.Status, to))
}
