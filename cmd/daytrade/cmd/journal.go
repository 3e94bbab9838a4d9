package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/daytrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the session journal",
	Long: `Query fills and session summaries from the SQLite journal.

Subcommands:
  fills    - List routed orders and their fills
  sessions - List session summaries
  session  - Show one session

Examples:
  daytrade journal fills --symbol 005930
  daytrade journal sessions --org
  daytrade journal session 01HZX...`,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "List routed orders and their fills",
	Args:  cobra.NoArgs,
	RunE:  runJournalFills,
}

var journalSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List session summaries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalSessions,
}

var journalSessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Show one session as an Org entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalSession,
}

var (
	journalDBPath  string
	journalSymbol  string
	journalSession string
	journalOrg     bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalFillsCmd)
	journalCmd.AddCommand(journalSessionsCmd)
	journalCmd.AddCommand(journalSessionCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./daytrade.db", "path to SQLite journal DB")
	journalFillsCmd.Flags().StringVar(&journalSymbol, "symbol", "", "only this symbol")
	journalFillsCmd.Flags().StringVar(&journalSession, "session", "", "only this session id")
	journalSessionsCmd.Flags().BoolVar(&journalOrg, "org", false, "print Org mode entries")
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	var recs []journal.FillRecord
	switch {
	case journalSession != "":
		recs, err = j.ListFillsBySession(journalSession)
	case journalSymbol != "":
		recs, err = j.ListFillsBySymbol(journalSymbol)
	default:
		recs, err = j.ListFills()
	}
	if err != nil {
		return fmt.Errorf("query fills: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tSIDE\tQTY\tPRICE\tFILLED\tREASON\tPNL\tERROR")
	for _, r := range recs {
		filled := "-"
		if r.Executed {
			filled = fmt.Sprintf("%d@%.2f", r.FilledQty, r.FillPrice)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\t%.2f\t%s\n",
			r.Time.Format(time.DateTime), r.Symbol, r.Side, r.Quantity, r.Price,
			filled, r.Reason, r.RealizedPnL, r.Error)
	}
	return w.Flush()
}

func runJournalSessions(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListSessions()
	if err != nil {
		return fmt.Errorf("query sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if journalOrg {
		for _, s := range recs {
			text, err := journal.FormatSessionOrg(s)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTART\tTICKS\tBUYS\tSELLS\tWINS\tLOSSES\tPNL\tEQUITY")
	for _, s := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.2f\n",
			s.SessionID, s.Start.Format(time.DateTime), s.Ticks, s.Buys, s.Sells,
			s.Wins, s.Losses, s.RealizedPnL, s.FinalEquity)
	}
	return w.Flush()
}

func runJournalSession(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	s, err := j.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	text, err := journal.FormatSessionOrg(s)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
