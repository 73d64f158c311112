// Package marketdata supplies day-ordered price bars to the simulation.
package marketdata

import (
	"context"

	"github.com/newthinker/papertrader/internal/core"
)

// Provider fetches daily bars for an instrument.
type Provider interface {
	Name() string

	// DailyBars returns up to limit bars in ascending date order. With an
	// empty from it returns the latest limit bars; otherwise the first
	// limit bars dated on or after from.
	DailyBars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error)
}

// BarStore caches bars per symbol. Upserting a bar replaces any stored
// bar with the same symbol and date.
type BarStore interface {
	Upsert(ctx context.Context, symbol string, bars []core.PriceBar) error

	// Bars returns up to limit stored bars dated on or after from, ascending.
	Bars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error)
}
