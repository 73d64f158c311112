package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage"
	"github.com/newthinker/papertrader/internal/storage/session"
)

func TestSessionStore(t *testing.T) {
	pool := setupTestDB(t)
	store := NewSessionStore(pool)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id, code string, status simulation.Status, minute int) *simulation.Session {
		return &simulation.Session{
			ID:             id,
			InstrumentCode: code,
			TotalDays:      10,
			InitialCapital: 100_000,
			CurrentCapital: 100_000,
			Status:         status,
			Trades:         []simulation.Trade{},
			CreatedAt:      base,
			UpdatedAt:      base.Add(time.Duration(minute) * time.Minute),
		}
	}

	s1 := mk("s1", "sh600519", simulation.StatusRunning, 1)
	s1.Trades = append(s1.Trades, simulation.Trade{Kind: simulation.TradeBuy, Price: 10, Quantity: 100, CapitalAfter: 99_000, PositionAfter: 100})
	s1.Position = 100
	s1.CostBasis = 10
	require.NoError(t, store.Save(ctx, s1))
	require.NoError(t, store.Save(ctx, mk("s2", "600519", simulation.StatusCompleted, 2)))
	require.NoError(t, store.Save(ctx, mk("s3", "sz000001", simulation.StatusRunning, 3)))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s1.Trades, got.Trades)
	assert.Equal(t, int64(100), got.Position)

	s1.Status = simulation.StatusPaused
	s1.UpdatedAt = base.Add(10 * time.Minute)
	require.NoError(t, store.Save(ctx, s1))

	list, err := store.List(ctx, session.Filter{Instrument: "600519"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].ID)
	assert.Equal(t, simulation.StatusPaused, list[0].Status)

	running, err := store.List(ctx, session.Filter{Status: simulation.StatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "s3", running[0].ID)

	require.NoError(t, store.Delete(ctx, "s2"))
	_, err = store.Get(ctx, "s2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "s2"), storage.ErrNotFound)
}
