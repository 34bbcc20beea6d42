// Package list handles the transaction listing command
package list

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/cmd/root"
	"tally/internal/models"
	"tally/internal/report"
)

// Cmd represents the list command
var Cmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger transactions, newest first",
	Long: `List the most recent transactions in the ledger with their review
state. Unreviewed transactions show as "(unreviewed)" and ignored ones as
"(ignored)".`,
	RunE: listFunc,
}

var (
	limit   int
	showAll bool
)

func init() {
	Cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of transactions to show")
	Cmd.Flags().BoolVar(&showAll, "all", false, "Show the whole ledger")
}

func listFunc(cmd *cobra.Command, args []string) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n := limit
	if showAll {
		n = 0
	}
	txns, err := report.New(s).List(cmd.Context(), n)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "The ledger is empty.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tAMOUNT\tCATEGORY\tDESCRIPTION\tSOURCE")
	for _, t := range txns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Date, t.Amount, stateLabel(t), t.Description, t.Source)
	}
	return w.Flush()
}

func stateLabel(t models.Transaction) string {
	switch t.State() {
	case models.StateCategorized:
		return t.Category
	case models.StateIgnored:
		return "(ignored)"
	default:
		return "(unreviewed)"
	}
}
