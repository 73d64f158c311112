package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/marketdata"
)

// BarStore implements marketdata.BarStore on a ReplacingMergeTree table;
// reads use FINAL so a re-fetched bar always wins.
type BarStore struct {
	conn *Conn
	now  func() time.Time
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn, now: time.Now}
}

var _ marketdata.BarStore = (*BarStore)(nil)

func (s *BarStore) Upsert(ctx context.Context, symbol string, bars []core.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	symbol = core.NormalizeCode(symbol)

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (
			symbol, date, open, close, high, low, volume, fetched_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	fetchedAt := s.now().UTC()
	for _, b := range bars {
		date, err := core.ParseDate(b.Date)
		if err != nil {
			return fmt.Errorf("bar date %q: %w", b.Date, err)
		}
		if err := batch.Append(symbol, date, b.Open, b.Close, b.High, b.Low, b.Volume, fetchedAt); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (s *BarStore) Bars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error) {
	fromDate := time.Time{}
	if from != "" {
		t, err := core.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("from date %q: %w", from, err)
		}
		fromDate = t
	}
	if limit <= 0 {
		limit = 10000
	}

	query := `
		SELECT date, open, close, high, low, volume
		FROM price_bars FINAL
		WHERE symbol = ? AND date >= ?
		ORDER BY date ASC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, core.NormalizeCode(symbol), fromDate, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func scanBars(rows chRows) ([]core.PriceBar, error) {
	bars := []core.PriceBar{}
	for rows.Next() {
		var b core.PriceBar
		var date time.Time
		if err := rows.Scan(&date, &b.Open, &b.Close, &b.High, &b.Low, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Date = date.Format(core.DateLayout)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
