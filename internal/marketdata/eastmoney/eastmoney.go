// Package eastmoney fetches A-share daily klines from Eastmoney.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/marketdata"
)

const (
	defaultHistoryURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

	// klines are requested up to a far future date; lmt or beg bounds the range
	openEnd = "20500101"
)

var klinePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}),([^,]+),([^,]+),([^,]+),([^,]+),([^,]+)`)

// Eastmoney implements marketdata.Provider with forward-adjusted daily klines
type Eastmoney struct {
	client     *http.Client
	historyURL string
}

// Option customises the provider
type Option func(*Eastmoney)

// WithBaseURL points the provider at another kline endpoint.
func WithBaseURL(u string) Option {
	return func(e *Eastmoney) { e.historyURL = u }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Eastmoney) { e.client = c }
}

// New creates a new Eastmoney provider
func New(opts ...Option) *Eastmoney {
	e := &Eastmoney{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		historyURL: defaultHistoryURL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ marketdata.Provider = (*Eastmoney)(nil)

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

// secID converts an instrument code to Eastmoney's market.code form.
// Shanghai = 1; Shenzhen and Beijing = 0.
func secID(symbol string) (string, error) {
	code := core.NormalizeCode(symbol)
	if len(code) < 3 {
		return "", core.Errorf(core.ErrInvalidParameter, "unrecognised instrument code %q", symbol)
	}
	num := code[2:]
	switch core.MarketOf(code) {
	case core.MarketSH:
		return "1." + num, nil
	case core.MarketSZ, core.MarketBJ:
		return "0." + num, nil
	}
	return "", core.Errorf(core.ErrInvalidParameter, "unrecognised instrument code %q", symbol)
}

func (e *Eastmoney) DailyBars(ctx context.Context, symbol, from string, limit int) ([]core.PriceBar, error) {
	secid, err := secID(symbol)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("secid", secid)
	q.Set("klt", "101") // daily
	q.Set("fqt", "1")   // forward adjusted
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56")
	q.Set("end", openEnd)
	if from != "" {
		t, err := core.ParseDate(from)
		if err != nil {
			return nil, core.Errorf(core.ErrInvalidParameter, "invalid from date %q", from)
		}
		q.Set("beg", t.Format("20060102"))
	} else {
		q.Set("lmt", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.historyURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, err)
	}
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching klines: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf(core.ErrCollectorFailed, "fetching klines: status %d", resp.StatusCode)
	}

	var result historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("decoding response: %w", err))
	}
	if result.Data == nil || len(result.Data.Klines) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no klines for %s", symbol)
	}

	bars := parseKlines(result.Data.Klines)
	if from != "" && len(bars) > limit {
		bars = bars[:limit]
	}
	if from == "" && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// parseKlines reads "date,open,close,high,low,volume,..." lines, skipping
// any that do not parse.
func parseKlines(lines []string) []core.PriceBar {
	bars := make([]core.PriceBar, 0, len(lines))
	for _, line := range lines {
		m := klinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		open, err1 := strconv.ParseFloat(m[2], 64)
		closePrice, err2 := strconv.ParseFloat(m[3], 64)
		high, err3 := strconv.ParseFloat(m[4], 64)
		low, err4 := strconv.ParseFloat(m[5], 64)
		volume, err5 := strconv.ParseFloat(m[6], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}

		bars = append(bars, core.PriceBar{
			Date:   m[1],
			Open:   open,
			Close:  closePrice,
			High:   high,
			Low:    low,
			Volume: int64(volume),
		})
	}
	return bars
}

type historyResponse struct {
	Data *historyData `json:"data"`
}

type historyData struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Klines []string `json:"klines"`
}
