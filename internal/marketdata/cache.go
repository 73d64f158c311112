package marketdata

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/core"
)

// CachedProvider serves anchored requests from a BarStore when it holds
// the whole range, and writes every upstream response through to it.
//
// Latest-bar requests always go upstream so new trading days are seen.
type CachedProvider struct {
	upstream Provider
	store    BarStore
	logger   *zap.Logger
	observe  func(source string, err error)
}

// CacheOption customises a CachedProvider
type CacheOption func(*CachedProvider)

// WithObserver registers a callback invoked once per request with the
// source that served it ("cache" or the upstream name).
func WithObserver(fn func(source string, err error)) CacheOption {
	return func(c *CachedProvider) { c.observe = fn }
}

// NewCachedProvider wraps upstream with store. A nil store passes every
// request through, still reporting it to the observer.
func NewCachedProvider(upstream Provider, store BarStore, logger *zap.Logger, opts ...CacheOption) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CachedProvider{
		upstream: upstream,
		store:    store,
		logger:   logger,
		observe:  func(string, error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Provider = (*CachedProvider)(nil)

func (c *CachedProvider) Name() string {
	return c.upstream.Name() + "+cache"
}

func (c *CachedProvider) DailyBars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error) {
	if limit <= 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, "limit must be positive, got %d", limit)
	}

	if from != "" && c.store != nil {
		cached, err := c.store.Bars(ctx, symbol, from, limit)
		if err != nil {
			c.logger.Warn("bar cache read failed",
				zap.String("symbol", symbol), zap.Error(err))
		} else if len(cached) == limit && cached[0].Date == from {
			c.observe("cache", nil)
			return cached, nil
		}
	}

	bars, err := c.upstream.DailyBars(ctx, symbol, from, limit)
	c.observe(c.upstream.Name(), err)
	if err != nil {
		return nil, err
	}

	if c.store == nil {
		return bars, nil
	}
	if err := c.store.Upsert(ctx, symbol, bars); err != nil {
		// a cache write failure never fails the request
		c.logger.Warn("bar cache write failed",
			zap.String("symbol", symbol), zap.Int("bars", len(bars)), zap.Error(err))
	} else {
		c.logger.Debug("cached bars",
			zap.String("symbol", symbol), zap.String("from", from), zap.Int("bars", len(bars)))
	}
	return bars, nil
}

// Validate checks bars are well formed and strictly ascending by date.
func Validate(bars []core.PriceBar) error {
	prev := ""
	for i, b := range bars {
		if !b.IsValid() {
			return core.Errorf(core.ErrNoData, "bar %d (%s) is malformed", i, b.Date)
		}
		if b.Date <= prev {
			return core.WrapError(core.ErrNoData, fmt.Errorf("bar %d dated %s does not follow %s", i, b.Date, prev))
		}
		prev = b.Date
	}
	return nil
}
