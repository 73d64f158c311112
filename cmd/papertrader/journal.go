package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/papertrader/internal/journal"
	"github.com/newthinker/papertrader/internal/position"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Real-money trade journal",
	Long:  `Commands for recording real trades and deriving positions and habits from them. Quantities are in lots.`,
}

var journalAddCmd = &cobra.Command{
	Use:   "add <symbol> <B|S|T> <lots>",
	Short: "Record a trade",
	Args:  cobra.ExactArgs(3),
	RunE:  runJournalAdd,
}

var journalListCmd = &cobra.Command{
	Use:   "list [symbol]",
	Short: "List records, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalList,
}

var journalUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalUpdate,
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDelete,
}

var journalPositionCmd = &cobra.Command{
	Use:   "position [symbol]",
	Short: "Show the holding derived from records",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalPosition,
}

var journalStyleCmd = &cobra.Command{
	Use:   "style [symbol]",
	Short: "Summarise trading habits",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalStyle,
}

var journalExportCmd = &cobra.Command{
	Use:   "export [symbol]",
	Short: "Export records as markdown",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalExport,
}

var (
	jName      string
	jPrice     float64
	jBuyPrice  float64
	jSellPrice float64
	jReason    string
	jMood      string
	jLevel     int
	jTime      string
	jLots      int64
	jLimit     int
	jOutput    string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalAddCmd, journalListCmd, journalUpdateCmd, journalDeleteCmd,
		journalPositionCmd, journalStyleCmd, journalExportCmd)

	for _, c := range []*cobra.Command{journalAddCmd, journalUpdateCmd} {
		c.Flags().StringVar(&jName, "name", "", "instrument name")
		c.Flags().Float64VarP(&jPrice, "price", "p", 0, "trade price")
		c.Flags().Float64Var(&jBuyPrice, "buy-price", 0, "day trade buy price")
		c.Flags().Float64Var(&jSellPrice, "sell-price", 0, "day trade sell price")
		c.Flags().StringVarP(&jReason, "reason", "r", "", "why the trade was made")
		c.Flags().StringVar(&jMood, "mood", "", "calm, anxious, panic, fear or excited")
		c.Flags().IntVar(&jLevel, "level", 0, "conviction level 1-3")
		c.Flags().StringVar(&jTime, "time", "", "trade time (YYYY-MM-DD HH:MM, local)")
	}
	journalUpdateCmd.Flags().Int64Var(&jLots, "lots", 0, "quantity in lots")

	journalListCmd.Flags().IntVar(&jLimit, "limit", 0, "maximum number of records")
	journalExportCmd.Flags().StringVarP(&jOutput, "output", "o", "", "write to file instead of stdout")
}

// withJournal runs fn against the configured journal.
func withJournal(cmd *cobra.Command, fn func(ctx context.Context, j *journal.Journal) error) error {
	return withApp(cmd, func(ctx context.Context, rt *runtime) error {
		j := rt.app.Journal()
		if j == nil {
			return fmt.Errorf("journal needs storage.blob configured")
		}
		return fn(ctx, j)
	})
}

func parseTradeTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid trade time %q, want YYYY-MM-DD [HH:MM]", s)
}

func roundTrip() *position.RoundTrip {
	if jBuyPrice == 0 && jSellPrice == 0 {
		return nil
	}
	return &position.RoundTrip{BuyPrice: jBuyPrice, SellPrice: jSellPrice}
}

func runJournalAdd(cmd *cobra.Command, args []string) error {
	var lots int64
	if _, err := fmt.Sscan(args[2], &lots); err != nil {
		return fmt.Errorf("invalid lots %q", args[2])
	}
	in := journal.NewRecord{
		Symbol:    args[0],
		Name:      jName,
		Type:      journal.TradeType(args[1]),
		Price:     jPrice,
		Lots:      lots,
		RoundTrip: roundTrip(),
		Reason:    jReason,
		Mood:      journal.Mood(jMood),
		Level:     jLevel,
	}
	if jTime != "" {
		t, err := parseTradeTime(jTime)
		if err != nil {
			return err
		}
		in.TradeTime = t
	}

	return withJournal(cmd, func(ctx context.Context, j *journal.Journal) error {
		r, err := j.Add(ctx, in)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %s: %s %s %d lots @ %.3f\n", r.ID, r.Symbol, r.Type, r.Lots, r.Price)
		return nil
	})
}

func runJournalList(cmd *cobra.Command, args []string) error {
	symbol := ""
	if len(args) == 1 {
		symbol = args[0]
	}
	return withJournal(cmd, func(ctx context.Context, j *journal.Journal) error {
		records, err := j.List(ctx, symbol, jLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tSYMBOL\tTYPE\tPRICE\tLOTS\tMOOD\tREASON\t")
		fmt.Fprintln(w, "--\t----\t------\t----\t-----\t----\t----\t------\t")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%d\t%s\t%s\t\n",
				r.ID, r.TradeTime.Format("2006-01-02 15:04"), r.Symbol, r.Type, r.Price, r.Lots, r.Mood, r.Reason)
		}
		return w.Flush()
	})
}

func runJournalUpdate(cmd *cobra.Command, args []string) error {
	var p journal.Patch
	flags := cmd.Flags()
	if flags.Changed("name") {
		p.Name = &jName
	}
	if flags.Changed("price") {
		p.Price = &jPrice
	}
	if flags.Changed("buy-price") || flags.Changed("sell-price") {
		p.RoundTrip = roundTrip()
	}
	if flags.Changed("reason") {
		p.Reason = &jReason
	}
	if flags.Changed("mood") {
		m := journal.Mood(jMood)
		p.Mood = &m
	}
	if flags.Changed("level") {
		p.Level = &jLevel
	}
	if flags.Changed("lots") {
		p.Lots = &jLots
	}
	if flags.Changed("time") {
		t, err := parseTradeTime(jTime)
		if err != nil {
			return err
		}
		p.TradeTime = &t
	}

	return withJournal(cmd, func(ctx context.Context, j *journal.Journal) error {
		r, err := j.Update(ctx, args[0], p)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s: %s %s %d lots @ %.3f\n", r.ID, r.Symbol, r.Type, r.Lots, r.Price)
		return nil
	})
}

func runJournalDelete(cmd *cobra.Command, args []string) error {
	return withJournal(cmd, func(ctx context.Context, j *journal.Journal) error {
		r, err := j.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s (%s %s).\n", r.ID, r.Symbol, r.Type)
		return nil
	})
}

func runJournalPosition(cmd *cobra.Command, args []string) error {
	return withJournal(cmd, func(ctx context.Context, j *journal.Journal) error {
		symbols := args
		if len(symbols) == 0 {
			all, err := j.Symbols(ctx)
			if err != nil {
				return err
			}
			symbols = all
		}
		if len(symbols) == 0 {
			fmt.Println("No records found.")
			return nil
		}
		sort.Strings(symbols)

		fmt.Printf("1 lot = %d shares\n\n", j.LotSize())
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tSHARES\tLOTS\tAVG COST\tTOTAL COST\tRECORDS\t")
		fmt.Fprintln(w, "------\t------\t----\t--------\t----------\t-------\t")
		for _, s := range symbols {
			p, err := j.Position(ctx, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%.3f\t%.2f\t%d\t\n",
				p.Symbol, p.Shares, p.Lots, p.AvgCost, p.TotalCost, p.Records)
		}
		return w.Flush()
	})
}

func runJournalStyle(cmd *cobra.Command, args []string) error {
	symbol := ""
	if len(args) == 1 {
		symbol = args[0]
	}
	return withJournal(cmd, func(ctx context.Context, j *journal.Journal) error {
		st, err := j.Style(ctx, symbol)
		if err != nil {
			return err
		}
		fmt.Printf("Records:   %d (buys %d, sells %d, day trades %d)\n", st.TotalRecords, st.Buys, st.Sells, st.DayTrades)
		fmt.Printf("Win rate:  %.2f%% over %d closed pairs\n", st.WinRatePercent, st.CompletedPairs)
		if len(st.Moods) > 0 {
			fmt.Println("Moods:")
			for _, m := range []journal.Mood{journal.MoodCalm, journal.MoodAnxious, journal.MoodPanic, journal.MoodFear, journal.MoodExcited} {
				if n := st.Moods[m]; n > 0 {
					fmt.Printf("  %-8s %d\n", m, n)
				}
			}
		}
		return nil
	})
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	symbol := ""
	if len(args) == 1 {
		symbol = args[0]
	}
	return withJournal(cmd, func(ctx context.Context, j *journal.Journal) error {
		md, err := j.ExportMarkdown(ctx, symbol)
		if err != nil {
			return err
		}
		if jOutput == "" {
			render(md)
			return nil
		}
		if err := os.WriteFile(jOutput, []byte(md), 0o644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Printf("Exported to %s\n", jOutput)
		return nil
	})
}
