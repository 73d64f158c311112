package simulation

import "github.com/shopspring/decimal"

// Result holds the performance figures of a session
type Result struct {
	FinalCapital       float64 `json:"final_capital"`
	ProfitRatePercent  float64 `json:"profit_rate_percent"`
	WinRatePercent     float64 `json:"win_rate_percent"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	TotalTrades        int     `json:"total_trades"`
	PositionValue      float64 `json:"position_value"`
	Wins               int     `json:"wins"`
	CompletedPairs     int     `json:"completed_pairs"`
	SettlementPrice    float64 `json:"settlement_price"`
}

// CalculateResult derives the session's performance, valuing any open
// position at settlementPrice. It never mutates the session.
func CalculateResult(s *Session, settlementPrice float64) Result {
	positionValue := float64(s.Position) * settlementPrice
	finalCapital := s.CurrentCapital + positionValue

	var profitRate float64
	if s.InitialCapital > 0 {
		profitRate = (finalCapital - s.InitialCapital) / s.InitialCapital * 100
	}

	wins, pairs := winLoss(s.Trades)
	var winRate float64
	if pairs > 0 {
		winRate = float64(wins) / float64(pairs) * 100
	}

	total := 0
	for _, t := range s.Trades {
		if t.Kind != TradeSkip {
			total++
		}
	}

	return Result{
		FinalCapital:       round2(finalCapital),
		ProfitRatePercent:  round2(profitRate),
		WinRatePercent:     round2(winRate),
		MaxDrawdownPercent: round2(maxDrawdown(s.InitialCapital, s.Trades)),
		TotalTrades:        total,
		PositionValue:      round2(positionValue),
		Wins:               wins,
		CompletedPairs:     pairs,
		SettlementPrice:    settlementPrice,
	}
}

// winLoss pairs each sell with the most recent buy price; a sale strictly
// above that price is a win.
func winLoss(trades []Trade) (wins, pairs int) {
	var lastBuy float64
	for _, t := range trades {
		switch {
		case t.Kind == TradeBuy:
			lastBuy = t.Price
		case t.Kind.IsSell() && lastBuy > 0:
			pairs++
			if t.Price > lastBuy {
				wins++
			}
		}
	}
	return wins, pairs
}

// maxDrawdown finds the largest peak-to-trough decline of the cash
// balance after each trade, in percent. Open positions are not marked to
// market, so a buy shows up as a drawdown of the cash spent.
func maxDrawdown(initial float64, trades []Trade) float64 {
	peak := initial
	var maxDD float64
	for _, t := range trades {
		if t.CapitalAfter > peak {
			peak = t.CapitalAfter
		}
		if peak > 0 {
			if dd := (peak - t.CapitalAfter) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
