package simulation

import "github.com/newthinker/papertrader/internal/core"

// DefaultLookback is the number of bars disclosed before day 0, enough to
// seed moving averages.
const DefaultLookback = 30

// VisibleWindow returns the bars a trader may see: indexes
// [max(0, start-lookback), start+currentDay] of series. Nothing dated after
// the current simulated day is ever returned.
func VisibleWindow(s *Session, series []core.PriceBar, lookback int) []core.PriceBar {
	lookback = max(0, lookback)
	start := s.PriceSeriesStartIndex
	end := min(start+s.CurrentDay, len(series)-1)
	from := max(0, start-lookback)
	if end < from {
		return []core.PriceBar{}
	}

	// Copy rather than reslice: a subslice would still reach the hidden
	// bars through its capacity.
	out := make([]core.PriceBar, end-from+1)
	copy(out, series[from:end+1])
	return out
}

// BarAt returns the bar of simulated day, provided the session has reached it.
func BarAt(s *Session, series []core.PriceBar, day int) (core.PriceBar, bool) {
	if day < 0 || day > s.CurrentDay {
		return core.PriceBar{}, false
	}
	idx := s.PriceSeriesStartIndex + day
	if idx >= len(series) {
		return core.PriceBar{}, false
	}
	return series[idx], true
}

// CurrentBar returns the bar of the current simulated day.
func CurrentBar(s *Session, series []core.PriceBar) (core.PriceBar, bool) {
	return BarAt(s, series, s.CurrentDay)
}

// SimulatedBars returns the bars of the simulated days reached so far,
// from day 0 to the current day, without lookback.
func SimulatedBars(s *Session, series []core.PriceBar) []core.PriceBar {
	return VisibleWindow(s, series, 0)
}
