package report

import (
	"fmt"
	"strings"

	"github.com/newthinker/papertrader/internal/simulation"
)

// SessionMarkdown renders a session and its result as a markdown report.
func SessionMarkdown(s *simulation.Session, r simulation.Result) string {
	var sb strings.Builder

	name := s.InstrumentCode
	if s.InstrumentName != "" {
		name = fmt.Sprintf("%s (%s)", s.InstrumentName, s.InstrumentCode)
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", name))
	sb.WriteString(fmt.Sprintf("- Session: `%s`\n", s.ID))
	sb.WriteString(fmt.Sprintf("- Status: **%s**\n", s.Status))
	sb.WriteString(fmt.Sprintf("- Period: %s to %s (%d/%d days)\n", s.StartDate, s.EndDate, s.CurrentDay, s.TotalDays))
	sb.WriteString("\n## Result\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Initial capital | %s |\n", Money(s.InitialCapital)))
	sb.WriteString(fmt.Sprintf("| Final capital | %s |\n", Money(r.FinalCapital)))
	sb.WriteString(fmt.Sprintf("| Profit | %s |\n", SignedMoney(r.FinalCapital-s.InitialCapital)))
	sb.WriteString(fmt.Sprintf("| Profit rate | %.2f%% |\n", r.ProfitRatePercent))
	sb.WriteString(fmt.Sprintf("| Win rate | %.2f%% (%d/%d) |\n", r.WinRatePercent, r.Wins, r.CompletedPairs))
	sb.WriteString(fmt.Sprintf("| Max drawdown | %.2f%% |\n", r.MaxDrawdownPercent))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.TotalTrades))
	if s.Position > 0 {
		sb.WriteString(fmt.Sprintf("| Open position | %d @ %.2f |\n", s.Position, s.CostBasis))
		sb.WriteString(fmt.Sprintf("| Position value | %s |\n", Money(r.PositionValue)))
	}

	if len(s.Trades) > 0 {
		sb.WriteString("\n## Trades\n\n")
		sb.WriteString("| Day | Date | Kind | Qty | Price | Capital | Reason |\n|---|---|---|---|---|---|---|\n")
		for _, t := range s.Trades {
			if t.Kind == simulation.TradeSkip {
				sb.WriteString(fmt.Sprintf("| %d | %s | %s | | | %s | %s |\n",
					t.Day, t.Date, t.Kind, Money(t.CapitalAfter), cell(t.Reason)))
				continue
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %.2f | %s | %s |\n",
				t.Day, t.Date, t.Kind, t.Quantity, t.Price, Money(t.CapitalAfter), cell(t.Reason)))
		}
	}

	return sb.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	return strings.ReplaceAll(s, "\n", " ")
}
