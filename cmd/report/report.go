// Package report handles the spending report command
package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/cmd/root"
	"tally/internal/money"
	"tally/internal/report"
)

// Cmd represents the report command
var Cmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize spending and income by category",
	Long: `Summarize reviewed transactions by category, split into expenses and
income. Expense categories with a budget allocation also show how much of
the allocation is used. Defaults to the current month; --all covers the
whole ledger.`,
	RunE: reportFunc,
}

var (
	monthFlag string
	allTime   bool
	sortBy    string
	histogram bool
)

const histogramWidth = 40

func init() {
	Cmd.Flags().StringVarP(&monthFlag, "month", "m", "", "Month to report on (YYYY-MM, default current)")
	Cmd.Flags().BoolVar(&allTime, "all", false, "Report over the whole ledger")
	Cmd.Flags().StringVar(&sortBy, "sort-by", "value", "Row order: value or alpha")
	Cmd.Flags().BoolVar(&histogram, "histogram", false, "Draw a bar next to each expense category")
}

func reportFunc(cmd *cobra.Command, args []string) error {
	order, err := parseSortBy(sortBy)
	if err != nil {
		return err
	}
	period, err := resolvePeriod()
	if err != nil {
		return err
	}

	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := report.New(s).Report(cmd.Context(), period, order)
	if err != nil {
		return err
	}
	render(cmd, rep)
	return nil
}

func parseSortBy(s string) (report.SortBy, error) {
	switch s {
	case "value":
		return report.SortByValue, nil
	case "alpha":
		return report.SortByAlpha, nil
	default:
		return "", fmt.Errorf("invalid --sort-by %q: want value or alpha", s)
	}
}

func resolvePeriod() (report.Period, error) {
	if allTime {
		if monthFlag != "" {
			return report.Period{}, fmt.Errorf("--month and --all are mutually exclusive")
		}
		return report.AllTime(), nil
	}
	month, err := root.ResolveMonth(monthFlag)
	if err != nil {
		return report.Period{}, err
	}
	return report.MonthPeriod(month), nil
}

func render(cmd *cobra.Command, rep report.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report for %s\n\n", rep.Period.Label())

	if len(rep.Expenses) == 0 && len(rep.Income) == 0 {
		fmt.Fprintln(out, "No reviewed transactions in this period.")
		return
	}

	var maxExpense money.Money
	for _, row := range rep.Expenses {
		if row.Amount.Abs() > maxExpense {
			maxExpense = row.Amount.Abs()
		}
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if len(rep.Expenses) > 0 {
		fmt.Fprintln(w, "EXPENSES\tSPENT\tBUDGET\tUSED")
		for _, row := range rep.Expenses {
			budgeted, used := "-", "-"
			if row.HasBudget {
				budgeted = row.Allocated.String()
				used = fmt.Sprintf("%.0f%%", row.Percentage)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s", row.Category, row.Amount.Abs(), budgeted, used)
			if histogram {
				fmt.Fprintf(w, "\t%s", strings.Repeat("█", report.BarLength(row.Amount, maxExpense, histogramWidth)))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Total\t%s\t%s\t\n\t\t\t\n", rep.TotalExpense.Abs(), rep.TotalAllocated)
	}
	if len(rep.Income) > 0 {
		fmt.Fprintln(w, "INCOME\t\t\t")
		for _, row := range rep.Income {
			fmt.Fprintf(w, "%s\t%s\t\t\n", row.Category, row.Amount)
		}
		fmt.Fprintf(w, "Total\t%s\t\t\n\t\t\t\n", rep.TotalIncome)
	}
	fmt.Fprintf(w, "Net\t%s\t\t\n", rep.Net)
	w.Flush()
}
