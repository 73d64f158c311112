// Package journal keeps the trader's real-money trade records and derives
// positions from them.
package journal

import (
	"time"

	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/position"
)

// DefaultLotSize is the number of shares in one board lot.
const DefaultLotSize = 100

// TradeType classifies a journal record
type TradeType string

const (
	TypeBuy      TradeType = "B"
	TypeSell     TradeType = "S"
	TypeDayTrade TradeType = "T"
)

// Mood is the trader's state of mind when the trade was made
type Mood string

const (
	MoodCalm    Mood = "calm"
	MoodAnxious Mood = "anxious"
	MoodPanic   Mood = "panic"
	MoodFear    Mood = "fear"
	MoodExcited Mood = "excited"
)

func (m Mood) valid() bool {
	switch m {
	case MoodCalm, MoodAnxious, MoodPanic, MoodFear, MoodExcited:
		return true
	}
	return false
}

// Record is one journal entry. Quantities are in lots.
type Record struct {
	ID        string              `json:"id"`
	Symbol    string              `json:"symbol"`
	Name      string              `json:"name,omitempty"`
	Type      TradeType           `json:"type"`
	Price     float64             `json:"price"`
	Lots      int64               `json:"lots"`
	RoundTrip *position.RoundTrip `json:"round_trip,omitempty"`
	Reason    string              `json:"reason"`
	Mood      Mood                `json:"mood"`
	Level     int                 `json:"level"`
	TradeTime time.Time           `json:"trade_time"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}

// Validate checks the record is internally consistent.
func (r Record) Validate() error {
	if r.Symbol == "" {
		return core.Errorf(core.ErrInvalidParameter, "symbol required")
	}
	if r.Lots <= 0 {
		return core.Errorf(core.ErrInvalidParameter, "lots must be positive, got %d", r.Lots)
	}
	switch r.Type {
	case TypeBuy, TypeSell:
		if r.Price <= 0 {
			return core.Errorf(core.ErrInvalidParameter, "price must be positive, got %.4f", r.Price)
		}
	case TypeDayTrade:
		if r.RoundTrip == nil || r.RoundTrip.BuyPrice <= 0 || r.RoundTrip.SellPrice <= 0 {
			return core.Errorf(core.ErrInvalidParameter, "day trade needs buy and sell prices")
		}
	default:
		return core.Errorf(core.ErrInvalidParameter, "unknown trade type %q", r.Type)
	}
	if !r.Mood.valid() {
		return core.Errorf(core.ErrInvalidParameter, "unknown mood %q", r.Mood)
	}
	if r.Level < 1 || r.Level > 3 {
		return core.Errorf(core.ErrInvalidParameter, "level must be 1, 2 or 3, got %d", r.Level)
	}
	return nil
}

// fill converts the record to shares for the position accountant.
func (r Record) fill(lotSize int64) position.Fill {
	f := position.Fill{Price: r.Price, Quantity: r.Lots * lotSize}
	switch r.Type {
	case TypeBuy:
		f.Side = position.SideBuy
	case TypeSell:
		f.Side = position.SideSell
	case TypeDayTrade:
		f.Side = position.SideDayTrade
		f.RoundTrip = r.RoundTrip
	default:
		f.Side = position.SideSkip
	}
	return f
}
