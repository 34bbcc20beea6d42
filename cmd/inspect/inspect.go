// Package inspect handles the per-category transaction listing command
package inspect

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/cmd/root"
	"tally/internal/money"
	"tally/internal/report"
)

// Cmd represents the inspect command
var Cmd = &cobra.Command{
	Use:   "inspect <category>",
	Short: "List the transactions behind one category",
	Long: `List every transaction assigned to a category, newest first. The
special category "unreviewed" lists transactions still waiting for review.
Defaults to the current month; --all covers the whole ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: inspectFunc,
}

var (
	monthFlag string
	allTime   bool
)

func init() {
	Cmd.Flags().StringVarP(&monthFlag, "month", "m", "", "Month to inspect (YYYY-MM, default current)")
	Cmd.Flags().BoolVar(&allTime, "all", false, "Inspect the whole ledger")
}

func inspectFunc(cmd *cobra.Command, args []string) error {
	var period report.Period
	if allTime {
		if monthFlag != "" {
			return fmt.Errorf("--month and --all are mutually exclusive")
		}
		period = report.AllTime()
	} else {
		month, err := root.ResolveMonth(monthFlag)
		if err != nil {
			return err
		}
		period = report.MonthPeriod(month)
	}

	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	category := args[0]
	txns, err := report.New(s).Inspect(cmd.Context(), category, period)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(txns) == 0 {
		fmt.Fprintf(out, "No transactions for %s in %s.\n", category, period.Label())
		return nil
	}

	var total money.Money
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tAMOUNT\tDESCRIPTION\tSOURCE")
	for _, t := range txns {
		total += t.Amount
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Date, t.Amount, t.Description, t.Source)
	}
	fmt.Fprintf(w, "Total\t%s\t\t\n", total)
	return w.Flush()
}
