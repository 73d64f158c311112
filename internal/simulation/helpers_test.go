package simulation

import (
	"fmt"
	"time"

	"github.com/newthinker/papertrader/internal/core"
)

var testNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	n := 0
	return NewEngine(
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("sim-%d", n)
		}),
	)
}

// testSeries builds n consecutive daily bars closing at 10, 10.1, 10.2, ...
func testSeries(n int) []core.PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.PriceBar, n)
	for i := range bars {
		c := 10 + float64(i)*0.1
		bars[i] = core.PriceBar{
			Date:   base.AddDate(0, 0, i).Format(core.DateLayout),
			Open:   c - 0.05,
			Close:  c,
			High:   c + 0.1,
			Low:    c - 0.1,
			Volume: int64(1000 + i),
		}
	}
	return bars
}
