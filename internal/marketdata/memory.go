package marketdata

import (
	"context"
	"sort"
	"sync"

	"github.com/newthinker/papertrader/internal/core"
)

// MemoryBarStore is a BarStore held in process memory
type MemoryBarStore struct {
	mu   sync.RWMutex
	bars map[string]map[string]core.PriceBar // symbol -> date -> bar
}

// NewMemoryBarStore creates an empty store.
func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{bars: make(map[string]map[string]core.PriceBar)}
}

var _ BarStore = (*MemoryBarStore)(nil)

func (m *MemoryBarStore) Upsert(ctx context.Context, symbol string, bars []core.PriceBar) error {
	symbol = core.NormalizeCode(symbol)
	m.mu.Lock()
	defer m.mu.Unlock()

	byDate, ok := m.bars[symbol]
	if !ok {
		byDate = make(map[string]core.PriceBar, len(bars))
		m.bars[symbol] = byDate
	}
	for _, b := range bars {
		byDate[b.Date] = b
	}
	return nil
}

func (m *MemoryBarStore) Bars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.PriceBar{}
	for date, b := range m.bars[core.NormalizeCode(symbol)] {
		if date >= from {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
