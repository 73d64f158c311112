package simulation

import (
	"time"

	"github.com/newthinker/papertrader/internal/position"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusRunning, StatusPaused, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// TradeKind classifies an entry in the session ledger
type TradeKind string

const (
	TradeBuy      TradeKind = "buy"
	TradeSell     TradeKind = "sell"
	TradeSkip     TradeKind = "skip"
	TradeAutoSell TradeKind = "auto_sell"
)

// IsSell reports whether the trade reduced the position.
func (k TradeKind) IsSell() bool {
	return k == TradeSell || k == TradeAutoSell
}

// Trade is one ledger entry with the post-trade snapshot
type Trade struct {
	Day           int       `json:"day"`
	Date          string    `json:"date"`
	Kind          TradeKind `json:"kind"`
	Price         float64   `json:"price"`
	Quantity      int64     `json:"quantity"`
	Reason        string    `json:"reason"`
	CapitalAfter  float64   `json:"capital_after"`
	PositionAfter int64     `json:"position_after"`
}

// Fill converts the trade for the position accountant.
func (t Trade) Fill() position.Fill {
	side := position.SideSkip
	switch t.Kind {
	case TradeBuy:
		side = position.SideBuy
	case TradeSell, TradeAutoSell:
		side = position.SideSell
	}
	return position.Fill{Side: side, Price: t.Price, Quantity: t.Quantity}
}

// Session is the state carried by one replay run.
//
// Trades is the append-only ledger; Position and CostBasis always equal
// what replaying it through position.Accumulate yields.
type Session struct {
	ID             string `json:"id"`
	InstrumentCode string `json:"instrument_code"`
	InstrumentName string `json:"instrument_name"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`

	CurrentDay int `json:"current_day"`
	TotalDays  int `json:"total_days"`

	InitialCapital float64 `json:"initial_capital"`
	CurrentCapital float64 `json:"current_capital"`
	Position       int64   `json:"position"`
	CostBasis      float64 `json:"cost_basis"`

	Status Status  `json:"status"`
	Trades []Trade `json:"trades"`

	// PriceSeriesStartIndex is the index of day 0 in the backing series,
	// whose first bar is dated SeriesFrom.
	PriceSeriesStartIndex int    `json:"price_series_start_index"`
	SeriesFrom            string `json:"series_from"`

	FinalSettlementPrice   *float64 `json:"final_settlement_price,omitempty"`
	FinalProfitRatePercent *float64 `json:"final_profit_rate_percent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DaysRemaining returns the number of simulated days still to trade.
func (s *Session) DaysRemaining() int {
	return max(0, s.TotalDays-s.CurrentDay)
}

// IsFinalDay reports whether the next executed trade ends the session.
func (s *Session) IsFinalDay() bool {
	return s.CurrentDay+1 == s.TotalDays
}

// SettlementIndex is the index of the bar right after the simulated window.
func (s *Session) SettlementIndex() int {
	return s.PriceSeriesStartIndex + s.TotalDays
}

// Holding replays the ledger through the position accountant.
func (s *Session) Holding() position.Holding {
	fills := make([]position.Fill, len(s.Trades))
	for i, t := range s.Trades {
		fills[i] = t.Fill()
	}
	return position.Accumulate(fills)
}

// Clone returns a deep copy, so a failed operation can be discarded.
func (s *Session) Clone() *Session {
	c := *s
	c.Trades = make([]Trade, len(s.Trades))
	copy(c.Trades, s.Trades)
	if s.FinalSettlementPrice != nil {
		v := *s.FinalSettlementPrice
		c.FinalSettlementPrice = &v
	}
	if s.FinalProfitRatePercent != nil {
		v := *s.FinalProfitRatePercent
		c.FinalProfitRatePercent = &v
	}
	return &c
}
