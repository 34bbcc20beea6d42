// Package budget handles the zero-based budget commands
package budget

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/cmd/root"
	"tally/internal/budget"
	"tally/internal/dateutils"
	"tally/internal/money"
)

// Cmd represents the budget command
var Cmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage the month's zero-based budget",
	Long: `Manage the zero-based budget for a month. Funds enter a month as its
To-Be-Budgeted amount (--set-tbb) and are then allocated into categories
until nothing is left unbudgeted. Allocations can be set interactively
(--adjust), moved between categories (--from/--to/--amount, with the
pseudo-category "TBB" for unallocated funds), or carried over from a
previous month's unspent balances (--copy-from).

Without an action flag, the month's budget status is shown.`,
	RunE: budgetFunc,
}

var (
	monthFlag  string
	setTBB     string
	status     bool
	adjust     bool
	copyFrom   string
	fromFlag   string
	toFlag     string
	amountFlag string
)

func init() {
	Cmd.Flags().StringVarP(&monthFlag, "month", "m", "", "Month to operate on (YYYY-MM, default current)")
	Cmd.Flags().StringVar(&setTBB, "set-tbb", "", "Set the month's To-Be-Budgeted amount")
	Cmd.Flags().BoolVar(&status, "status", false, "Show the month's budget status")
	Cmd.Flags().BoolVar(&adjust, "adjust", false, "Adjust category allocations interactively")
	Cmd.Flags().StringVar(&copyFrom, "copy-from", "", "Seed allocations from a month's unspent balances (YYYY-MM)")
	Cmd.Flags().StringVar(&fromFlag, "from", "", "Transfer source category (or TBB)")
	Cmd.Flags().StringVar(&toFlag, "to", "", "Transfer target category (or TBB)")
	Cmd.Flags().StringVar(&amountFlag, "amount", "", "Transfer amount")
}

func budgetFunc(cmd *cobra.Command, args []string) error {
	month, err := root.ResolveMonth(monthFlag)
	if err != nil {
		return err
	}

	transfer := fromFlag != "" || toFlag != "" || amountFlag != ""
	actions := 0
	for _, active := range []bool{setTBB != "", adjust, copyFrom != "", transfer} {
		if active {
			actions++
		}
	}
	if actions > 1 {
		return fmt.Errorf("choose one of --set-tbb, --adjust, --copy-from or a transfer")
	}

	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()
	ledger := budget.New(s)

	switch {
	case setTBB != "":
		return runSetTBB(cmd, ledger, month)
	case transfer:
		return runTransfer(cmd, ledger, month)
	case copyFrom != "":
		return runCopyFrom(cmd, ledger, month)
	case adjust:
		return runAdjust(cmd, ledger, month)
	default:
		return runStatus(cmd, ledger, month)
	}
}

func runSetTBB(cmd *cobra.Command, ledger *budget.Ledger, month dateutils.Month) error {
	amount, err := money.ParseAmount(setTBB)
	if err != nil {
		return fmt.Errorf("invalid --set-tbb amount %q: %w", setTBB, err)
	}
	if err := ledger.SetTBB(cmd.Context(), month, amount); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "To-Be-Budgeted for %s set to %s.\n", month, amount)
	return nil
}

func runTransfer(cmd *cobra.Command, ledger *budget.Ledger, month dateutils.Month) error {
	if fromFlag == "" || toFlag == "" || amountFlag == "" {
		return fmt.Errorf("a transfer needs --from, --to and --amount together")
	}
	amount, err := money.ParseAmount(amountFlag)
	if err != nil {
		return fmt.Errorf("invalid --amount %q: %w", amountFlag, err)
	}
	if err := ledger.Transfer(cmd.Context(), month, fromFlag, toFlag, amount); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved %s from %s to %s in %s.\n", amount, fromFlag, toFlag, month)
	return nil
}

func runCopyFrom(cmd *cobra.Command, ledger *budget.Ledger, month dateutils.Month) error {
	source, err := dateutils.ParseMonth(copyFrom)
	if err != nil {
		return fmt.Errorf("invalid --copy-from month: %w", err)
	}
	rollovers, err := ledger.CopyFrom(cmd.Context(), source, month)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tALLOCATED\tSPENT\tCARRIED")
	for _, r := range rollovers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Category, r.Allocated, r.Spent, r.Carried)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Carried %d categor(ies) from %s into %s.\n", len(rollovers), source, month)
	return nil
}

func runStatus(cmd *cobra.Command, ledger *budget.Ledger, month dateutils.Month) error {
	st, err := ledger.Status(cmd.Context(), month)
	if err != nil {
		return err
	}
	printStatus(cmd, st)
	return nil
}

func printStatus(cmd *cobra.Command, st budget.Status) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Budget for %s\n", st.Month.Label())
	fmt.Fprintf(out, "To-Be-Budgeted: %s  Allocated: %s  Remaining: %s\n\n", st.TBB, st.TotalAllocated, st.Remaining)

	if len(st.Categories) == 0 {
		fmt.Fprintln(out, "No allocations yet.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tALLOCATED\tSPENT\tAVAILABLE")
	for _, c := range st.Categories {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Category, c.Allocated, c.Spent, c.Available)
	}
	w.Flush()
}

// runAdjust is the interactive allocation loop: each line sets one
// category's allocation for the month, "<amount> <category>", until the
// user types "done" or closes stdin.
func runAdjust(cmd *cobra.Command, ledger *budget.Ledger, month dateutils.Month) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	st, err := ledger.Status(ctx, month)
	if err != nil {
		return err
	}
	printStatus(cmd, st)
	fmt.Fprintln(out, "\nEnter \"<amount> <category>\" to set an allocation, or \"done\" to finish.")

	reader := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !reader.Scan() {
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" || line == "done" || line == "q" {
			break
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			fmt.Fprintln(out, "Need an amount and a category name.")
			continue
		}
		amount, err := money.ParseAmount(fields[0])
		if err != nil {
			fmt.Fprintf(out, "Invalid amount %q: %v\n", fields[0], err)
			continue
		}
		category := strings.Join(fields[1:], " ")

		remaining, err := ledger.Allocate(ctx, month, category, amount)
		if err != nil {
			fmt.Fprintf(out, "Cannot allocate: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Allocated %s to %s, To-Be-Budgeted remaining %s\n", amount, category, remaining)
	}
	if err := reader.Err(); err != nil {
		return err
	}

	st, err = ledger.Status(ctx, month)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	printStatus(cmd, st)
	return nil
}
