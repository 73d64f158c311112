package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/report"
	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage/session"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Replay simulation sessions",
	Long: `Commands for creating and playing replay sessions. By default sessions
are kept as JSON files under ./data; "sim play" runs a whole session in one
process and works with any store.`,
}

var simNewCmd = &cobra.Command{
	Use:     "new <instrument>",
	Aliases: []string{"create"},
	Short:   "Start a session over the latest bars of an instrument",
	Args:    cobra.ExactArgs(1),
	RunE:    runSimNew,
}

var simListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE:  runSimList,
}

var simShowCmd = &cobra.Command{
	Use:     "show <id>",
	Aliases: []string{"result"},
	Short:   "Show a session report",
	Args:    cobra.ExactArgs(1),
	RunE:    runSimShow,
}

var simBarsCmd = &cobra.Command{
	Use:   "bars <id>",
	Short: "Show the bars visible on the current day",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimBars,
}

var simTradeCmd = &cobra.Command{
	Use:   "trade <id> <buy|sell|skip>",
	Short: "Submit the decision for the current day",
	Args:  cobra.ExactArgs(2),
	RunE:  runSimTrade,
}

var simReviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Grade a session with the configured LLM",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimReview,
}

var simDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimDelete,
}

var simPlayCmd = &cobra.Command{
	Use:   "play <instrument>",
	Short: "Play a session interactively from start to settlement",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimPlay,
}

var (
	simDays       int
	simCapital    float64
	simName       string
	simInstrument string
	simStatus     string
	simLimit      int
	simTail       int
	tradeQty      int64
	tradePrice    float64
	tradeReason   string
)

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.AddCommand(simNewCmd, simListCmd, simShowCmd, simBarsCmd, simTradeCmd,
		simReviewCmd, simDeleteCmd, simPlayCmd)

	for _, c := range []*cobra.Command{simNewCmd, simPlayCmd} {
		c.Flags().IntVar(&simDays, "days", 20, "number of simulated trading days")
		c.Flags().Float64Var(&simCapital, "capital", 0, "initial capital (default from config)")
		c.Flags().StringVar(&simName, "name", "", "instrument display name")
	}

	simListCmd.Flags().StringVar(&simInstrument, "instrument", "", "filter by instrument code")
	simListCmd.Flags().StringVar(&simStatus, "status", "", "filter by status (running, paused, completed, abandoned)")
	simListCmd.Flags().IntVar(&simLimit, "limit", 0, "maximum number of sessions")

	simBarsCmd.Flags().IntVar(&simTail, "tail", 10, "number of most recent bars to print")

	simTradeCmd.Flags().Int64VarP(&tradeQty, "qty", "q", 0, "quantity in shares")
	simTradeCmd.Flags().Float64VarP(&tradePrice, "price", "p", 0, "execution price (default: current close)")
	simTradeCmd.Flags().StringVarP(&tradeReason, "reason", "r", "", "why you made this decision")

	for _, t := range []struct {
		use   string
		short string
		op    func(*app.App, context.Context, string) (*simulation.Session, error)
	}{
		{"pause", "Pause a running session", (*app.App).PauseSession},
		{"resume", "Resume a paused session", (*app.App).ResumeSession},
		{"abandon", "Abandon a session", (*app.App).AbandonSession},
		{"complete", "Settle a session whose days are used up", (*app.App).CompleteSession},
	} {
		op := t.op
		simCmd.AddCommand(&cobra.Command{
			Use:   t.use + " <id>",
			Short: t.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, rt *runtime) error {
					s, err := op(rt.app, ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Printf("Session %s is now %s.\n", s.ID, s.Status)
					return nil
				})
			},
		})
	}
}

// withApp builds the runtime for one command and releases it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// render prints markdown styled for the terminal, or raw when styling fails.
func render(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(md)
}

func runSimNew(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		s, err := rt.app.CreateSession(ctx, app.CreateInput{
			InstrumentCode: args[0],
			InstrumentName: simName,
			TotalDays:      simDays,
			InitialCapital: simCapital,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created session %s: %s, %d days, capital %s\n",
			s.ID, s.InstrumentCode, s.TotalDays, report.Money(s.InitialCapital))
		return nil
	})
}

func runSimList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		sessions, err := rt.app.ListSessions(ctx, session.Filter{
			Instrument: simInstrument,
			Status:     simulation.Status(simStatus),
			Limit:      simLimit,
		})
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tINSTRUMENT\tSTATUS\tDAY\tCAPITAL\tPOSITION\tUPDATED\t")
		fmt.Fprintln(w, "--\t----------\t------\t---\t-------\t--------\t-------\t")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%.2f\t%d\t%s\t\n",
				s.ID, s.InstrumentCode, s.Status, s.CurrentDay, s.TotalDays,
				s.CurrentCapital, s.Position, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	})
}

func runSimShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		view, err := rt.app.Result(ctx, args[0])
		if err != nil {
			return err
		}
		render(report.SessionMarkdown(view.Session, view.Result))
		return nil
	})
}

func runSimBars(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		return printBars(ctx, rt.app, args[0], simTail)
	})
}

func printBars(ctx context.Context, a *app.App, id string, tail int) error {
	view, err := a.Bars(ctx, id)
	if err != nil {
		return err
	}

	bars := view.Bars
	from := 0
	if tail > 0 && len(bars) > tail {
		from = len(bars) - tail
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tOPEN\tHIGH\tLOW\tCLOSE\tCHG%\tMA5\tMA10\tMA20\t")
	for i := from; i < len(bars); i++ {
		b := bars[i]
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%+.2f\t%s\t%s\t%s\t\n",
			b.Date, b.Open, b.High, b.Low, b.Close, b.ChangePercent(),
			maCell(view.MA["ma5"], i), maCell(view.MA["ma10"], i), maCell(view.MA["ma20"], i))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if view.Current != nil {
		fmt.Printf("Day %d: trading on %s at close %.2f\n", view.CurrentDay, view.Current.Date, view.Current.Close)
	}
	return nil
}

func maCell(values []*float64, i int) string {
	if i >= len(values) || values[i] == nil {
		return "-"
	}
	return strconv.FormatFloat(*values[i], 'f', 2, 64)
}

func runSimTrade(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		out, err := submit(ctx, rt.app, args[0], args[1], tradeQty, tradePrice, tradeReason)
		if err != nil {
			return err
		}
		printOutcome(out)
		return nil
	})
}

// submit executes one decision. A zero price takes the current close.
func submit(ctx context.Context, a *app.App, id, kind string, qty int64, price float64, reason string) (*app.TradeOutcome, error) {
	k := simulation.TradeKind(strings.ToLower(kind))
	if k != simulation.TradeSkip && price == 0 {
		view, err := a.Bars(ctx, id)
		if err != nil {
			return nil, err
		}
		if view.Current == nil {
			return nil, fmt.Errorf("session %s has no trading day left", id)
		}
		price = view.Current.Close
	}
	return a.ExecuteTrade(ctx, id, app.TradeInput{
		Kind:     k,
		Price:    price,
		Quantity: qty,
		Reason:   reason,
	})
}

func printOutcome(out *app.TradeOutcome) {
	t, s := out.Trade, out.Session
	if t.Kind == simulation.TradeSkip {
		fmt.Printf("Day %d (%s): skipped\n", t.Day, t.Date)
	} else {
		fmt.Printf("Day %d (%s): %s %d @ %.2f\n", t.Day, t.Date, t.Kind, t.Quantity, t.Price)
	}
	fmt.Printf("  capital %s, position %d", report.Money(s.CurrentCapital), s.Position)
	if s.Position > 0 {
		fmt.Printf(" @ %.3f", s.CostBasis)
	}
	fmt.Println()
	if s.Status == simulation.StatusCompleted {
		settle := s.Trades[len(s.Trades)-1]
		if settle.Kind == simulation.TradeAutoSell {
			fmt.Printf("  settled: auto sold %d @ %.2f\n", settle.Quantity, settle.Price)
		}
		if s.FinalProfitRatePercent != nil {
			fmt.Printf("  session completed, profit rate %.2f%%\n", *s.FinalProfitRatePercent)
		}
	}
}

func runSimReview(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		view, err := rt.app.Review(ctx, args[0])
		if err != nil {
			return err
		}
		render(view.Review.Markdown())
		return nil
	})
}

func runSimDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		if err := rt.app.DeleteSession(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s.\n", args[0])
		return nil
	})
}

const playHelp = `Commands:
  buy <qty> [price] [reason...]   buy at price (default: current close)
  sell <qty> [price] [reason...]  sell at price (default: current close)
  skip [reason...]                do nothing today
  bars                            show recent bars
  quit                            abandon the session and exit`

func runSimPlay(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		s, err := rt.app.CreateSession(ctx, app.CreateInput{
			InstrumentCode: args[0],
			InstrumentName: simName,
			TotalDays:      simDays,
			InitialCapital: simCapital,
		})
		if err != nil {
			return err
		}
		rt.log.Debug("interactive session started", zap.String("session_id", s.ID))

		fmt.Printf("Session %s: %d days on %s with %s.\n\n%s\n\n",
			s.ID, s.TotalDays, s.InstrumentCode, report.Money(s.InitialCapital), playHelp)
		if err := printBars(ctx, rt.app, s.ID, 10); err != nil {
			return err
		}

		done, err := play(ctx, rt.app, s.ID, os.Stdin)
		if err != nil {
			return err
		}
		if !done {
			if _, err := rt.app.AbandonSession(ctx, s.ID); err != nil {
				return err
			}
			fmt.Println("Session abandoned.")
			return nil
		}

		view, err := rt.app.Result(ctx, s.ID)
		if err != nil {
			return err
		}
		render(report.SessionMarkdown(view.Session, view.Result))

		if rt.app.ReviewEnabled() {
			rv, err := rt.app.Review(ctx, s.ID)
			if err != nil {
				rt.log.Warn("review failed", zap.Error(err))
				return nil
			}
			render(rv.Review.Markdown())
		}
		return nil
	})
}

// play reads decisions until the session completes or input ends. It
// reports whether the session completed.
func play(ctx context.Context, a *app.App, id string, in io.Reader) (bool, error) {
	sc := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return false, sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "quit", "exit":
			return false, nil
		case "help":
			fmt.Println(playHelp)
			continue
		case "bars":
			if err := printBars(ctx, a, id, 10); err != nil {
				fmt.Println("error:", err)
			}
			continue
		}

		kind, qty, price, reason, err := parseDecision(fields)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		out, err := submit(ctx, a, id, kind, qty, price, reason)
		if err != nil {
			fmt.Println("rejected:", err)
			continue
		}
		printOutcome(out)
		if out.Session.Status == simulation.StatusCompleted {
			return true, nil
		}
		if err := printBars(ctx, a, id, 1); err != nil {
			return false, err
		}
	}
}

// parseDecision reads "buy|sell <qty> [price] [reason...]" or
// "skip [reason...]".
func parseDecision(fields []string) (kind string, qty int64, price float64, reason string, err error) {
	kind = strings.ToLower(fields[0])
	rest := fields[1:]
	switch kind {
	case "skip":
		return kind, 0, 0, strings.Join(rest, " "), nil
	case "buy", "sell":
	default:
		return "", 0, 0, "", fmt.Errorf("unknown command %q, type help", fields[0])
	}

	if len(rest) == 0 {
		return "", 0, 0, "", fmt.Errorf("%s needs a quantity", kind)
	}
	qty, err = strconv.ParseInt(rest[0], 10, 64)
	if err != nil || qty <= 0 {
		return "", 0, 0, "", fmt.Errorf("invalid quantity %q", rest[0])
	}
	rest = rest[1:]
	if len(rest) > 0 {
		if p, perr := strconv.ParseFloat(rest[0], 64); perr == nil {
			if p <= 0 {
				return "", 0, 0, "", fmt.Errorf("invalid price %q", rest[0])
			}
			price = p
			rest = rest[1:]
		}
	}
	return kind, qty, price, strings.Join(rest, " "), nil
}
