package journal

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/position"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Journal manages trade records. Every mutation loads the snapshot,
// applies the change and saves it back under one lock.
type Journal struct {
	mu      sync.Mutex
	store   Store
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	lotSize int64
}

// Option customises a Journal
type Option func(*Journal)

func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(j *Journal) { j.newID = newID }
}

// WithLotSize sets the shares per lot; non-positive sizes are ignored.
func WithLotSize(n int64) Option {
	return func(j *Journal) {
		if n > 0 {
			j.lotSize = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.logger = l
		}
	}
}

// New creates a Journal over store.
func New(store Store, opts ...Option) *Journal {
	j := &Journal{
		store:   store,
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
		lotSize: DefaultLotSize,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// LotSize returns the number of shares per lot.
func (j *Journal) LotSize() int64 {
	return j.lotSize
}

// NewRecord holds the fields of a record to add. Zero Mood, Level and
// TradeTime take defaults.
type NewRecord struct {
	Symbol    string
	Name      string
	Type      TradeType
	Price     float64
	Lots      int64
	RoundTrip *position.RoundTrip
	Reason    string
	Mood      Mood
	Level     int
	TradeTime time.Time
}

// Add validates and appends a record.
func (j *Journal) Add(ctx context.Context, in NewRecord) (*Record, error) {
	now := j.now()
	r := Record{
		ID:        j.newID(),
		Symbol:    core.NormalizeCode(in.Symbol),
		Name:      in.Name,
		Type:      in.Type,
		Price:     in.Price,
		Lots:      in.Lots,
		RoundTrip: in.RoundTrip,
		Reason:    in.Reason,
		Mood:      in.Mood,
		Level:     in.Level,
		TradeTime: in.TradeTime,
		CreatedAt: now,
	}
	if r.Mood == "" {
		r.Mood = MoodCalm
	}
	if r.Level == 0 {
		r.Level = 2
	}
	if r.TradeTime.IsZero() {
		r.TradeTime = now
	}
	if r.Type == TypeDayTrade && r.Price == 0 && r.RoundTrip != nil {
		r.Price = r.RoundTrip.SellPrice
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.store.Load(ctx)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	records = append(records, r)
	if err := j.checkHoldings(records, r.Symbol); err != nil {
		return nil, err
	}
	if err := j.store.Save(ctx, records); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	j.logger.Info("journal record added",
		zap.String("id", r.ID),
		zap.String("symbol", r.Symbol),
		zap.String("type", string(r.Type)),
		zap.Int64("lots", r.Lots),
	)
	return &r, nil
}

// Patch lists the fields to change; nil fields are kept.
type Patch struct {
	Name      *string
	Type      *TradeType
	Price     *float64
	Lots      *int64
	RoundTrip *position.RoundTrip
	Reason    *string
	Mood      *Mood
	Level     *int
	TradeTime *time.Time
}

func (p Patch) apply(r *Record) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Lots != nil {
		r.Lots = *p.Lots
	}
	if p.RoundTrip != nil {
		rt := *p.RoundTrip
		r.RoundTrip = &rt
	}
	if p.Reason != nil {
		r.Reason = *p.Reason
	}
	if p.Mood != nil {
		r.Mood = *p.Mood
	}
	if p.Level != nil {
		r.Level = *p.Level
	}
	if p.TradeTime != nil {
		r.TradeTime = *p.TradeTime
	}
}

// Update changes a record in place. The result must still validate.
func (j *Journal) Update(ctx context.Context, id string, p Patch) (*Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.store.Load(ctx)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, core.Errorf(core.ErrRecordNotFound, "record %s", id)
	}

	r := records[i]
	p.apply(&r)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	now := j.now()
	r.UpdatedAt = &now
	records[i] = r
	if err := j.checkHoldings(records, r.Symbol); err != nil {
		return nil, err
	}

	if err := j.store.Save(ctx, records); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &r, nil
}

// Delete removes a record and returns it.
func (j *Journal) Delete(ctx context.Context, id string) (*Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.store.Load(ctx)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, core.Errorf(core.ErrRecordNotFound, "record %s", id)
	}

	deleted := records[i]
	records = append(records[:i], records[i+1:]...)
	if err := j.checkHoldings(records, deleted.Symbol); err != nil {
		return nil, err
	}
	if err := j.store.Save(ctx, records); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &deleted, nil
}

func indexOf(records []Record, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// List returns records of symbol (all symbols when empty), newest trade
// first, at most limit of them.
func (j *Journal) List(ctx context.Context, symbol string, limit int) ([]Record, error) {
	records, err := j.matching(ctx, symbol)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].TradeTime.After(records[b].TradeTime)
	})
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// matching loads the records of symbol in trade time order.
func (j *Journal) matching(ctx context.Context, symbol string) ([]Record, error) {
	j.mu.Lock()
	records, err := j.store.Load(ctx)
	j.mu.Unlock()
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return chronological(records, symbol), nil
}

// chronological filters records to symbol (all when empty) and orders
// them by trade time. Records with equal times keep their stored order.
func chronological(records []Record, symbol string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if symbol == "" || core.SameInstrument(r.Symbol, symbol) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].TradeTime.Before(out[b].TradeTime)
	})
	return out
}

// checkHoldings replays the records of symbol and rejects the set when a
// sell exceeds the shares held at its trade time.
func (j *Journal) checkHoldings(records []Record, symbol string) error {
	var held int64
	for _, r := range chronological(records, symbol) {
		shares := r.Lots * j.lotSize
		switch r.Type {
		case TypeBuy:
			held += shares
		case TypeSell:
			if shares > held {
				return core.Errorf(core.ErrInsufficientPosition,
					"%s: selling %d shares at %s, holding %d",
					r.Symbol, shares, r.TradeTime.Format("2006-01-02 15:04"), held)
			}
			held -= shares
		}
	}
	return nil
}

// Position is the holding derived from a symbol's records
type Position struct {
	Symbol    string  `json:"symbol"`
	Shares    int64   `json:"shares"`
	Lots      float64 `json:"lots"`
	AvgCost   float64 `json:"avg_cost"`
	TotalCost float64 `json:"total_cost"`
	Records   int     `json:"records"`
}

// Position replays the symbol's records, in trade time order, through the
// weighted-average accountant.
func (j *Journal) Position(ctx context.Context, symbol string) (*Position, error) {
	if symbol == "" {
		return nil, core.Errorf(core.ErrInvalidParameter, "symbol required")
	}
	records, err := j.matching(ctx, symbol)
	if err != nil {
		return nil, err
	}

	fills := make([]position.Fill, len(records))
	for i, r := range records {
		fills[i] = r.fill(j.lotSize)
	}
	h := position.Accumulate(fills)

	return &Position{
		Symbol:    core.NormalizeCode(symbol),
		Shares:    h.Quantity,
		Lots:      float64(h.Quantity) / float64(j.lotSize),
		AvgCost:   round(h.CostBasis, 3),
		TotalCost: round(h.TotalCost, 2),
		Records:   len(records),
	}, nil
}

// Style summarises trading habits over a symbol's records
type Style struct {
	TotalRecords   int          `json:"total_records"`
	Buys           int          `json:"buys"`
	Sells          int          `json:"sells"`
	DayTrades      int          `json:"day_trades"`
	Moods          map[Mood]int `json:"moods"`
	WinRatePercent float64      `json:"win_rate_percent"`
	CompletedPairs int          `json:"completed_pairs"`
}

// Style counts record types and moods, and pairs each sell with the
// latest buy price to estimate a win rate.
func (j *Journal) Style(ctx context.Context, symbol string) (*Style, error) {
	records, err := j.matching(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s := &Style{TotalRecords: len(records), Moods: map[Mood]int{}}
	var lastBuy float64
	wins := 0
	for _, r := range records {
		s.Moods[r.Mood]++
		switch r.Type {
		case TypeBuy:
			s.Buys++
			lastBuy = r.Price
		case TypeSell:
			s.Sells++
			if lastBuy > 0 {
				s.CompletedPairs++
				if r.Price > lastBuy {
					wins++
				}
			}
		case TypeDayTrade:
			s.DayTrades++
		}
	}
	if s.CompletedPairs > 0 {
		s.WinRatePercent = round(float64(wins)/float64(s.CompletedPairs)*100, 2)
	}
	return s, nil
}

// Symbols lists every symbol with at least one record.
func (j *Journal) Symbols(ctx context.Context) ([]string, error) {
	records, err := j.matching(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, r := range records {
		if !seen[r.Symbol] {
			seen[r.Symbol] = true
			out = append(out, r.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ExportMarkdown renders every record of symbol as a markdown table,
// newest first.
func (j *Journal) ExportMarkdown(ctx context.Context, symbol string) (string, error) {
	records, err := j.matching(ctx, symbol)
	if err != nil {
		return "", err
	}
	slices.Reverse(records)

	var b strings.Builder
	b.WriteString("# Trade journal\n\n")
	if len(records) == 0 {
		b.WriteString("No trade records.\n")
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Exported %s\n\n", j.now().Format("2006-01-02 15:04"))
	b.WriteString("| Time | Symbol | Type | Price | Lots | Reason | Mood |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range records {
		name := r.Name
		if name == "" {
			name = r.Symbol
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s | %s |\n",
			r.TradeTime.Format("2006-01-02 15:04"),
			name,
			typeLabel(r),
			decimal.NewFromFloat(r.Price).String(),
			r.Lots,
			strings.ReplaceAll(r.Reason, "|", "/"),
			r.Mood,
		)
	}
	return b.String(), nil
}

func typeLabel(r Record) string {
	switch r.Type {
	case TypeBuy:
		return "buy"
	case TypeSell:
		return "sell"
	case TypeDayTrade:
		if r.RoundTrip != nil {
			return fmt.Sprintf("day trade %s→%s",
				decimal.NewFromFloat(r.RoundTrip.BuyPrice).String(),
				decimal.NewFromFloat(r.RoundTrip.SellPrice).String())
		}
		return "day trade"
	}
	return string(r.Type)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
