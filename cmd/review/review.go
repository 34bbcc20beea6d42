// Package review handles the interactive categorization commands
package review

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tally/cmd/root"
	"tally/internal/categorizer"
	"tally/internal/models"
)

// Cmd represents the review command
var Cmd = &cobra.Command{
	Use:   "review",
	Short: "Categorize unreviewed transactions interactively",
	Long: `Walk through the unreviewed transactions one at a time and decide what
each one is: assign it to a category, ignore it, or skip it for later.
When past reviews suggest a category for a description, pressing enter
accepts the suggestion.

Decisions:
  a <category>   assign to an existing category
  c <category>   create the category and assign
  r <category>   assign and remember as an auto-allocate rule
  i              ignore this transaction
  ri             ignore and remember as an auto-ignore rule
  s (or enter)   skip for now (enter accepts the suggestion when one is shown)
  q              stop reviewing`,
	RunE: reviewFunc,
}

var oldestFirst bool

func init() {
	Cmd.Flags().BoolVar(&oldestFirst, "oldest-first", false, "Review oldest transactions first")
}

func reviewFunc(cmd *cobra.Command, args []string) error {
	s, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	pending, err := s.ListUnreviewed(ctx, oldestFirst)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to review.")
		return nil
	}

	engine := categorizer.New(s)
	reader := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	for n, txn := range pending {
		// The transaction may have been resolved by an earlier persisted
		// rule in this same session.
		current, err := s.GetTransaction(ctx, txn.ID)
		if err == nil && current.State() != models.StateUnreviewed {
			continue
		}

		suggestion, hasSuggestion, err := engine.Suggest(ctx, txn.Description)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n[%d/%d] %s  %s  %s\n", n+1, len(pending), txn.Date, txn.Amount, txn.Description)
		if hasSuggestion {
			fmt.Fprintf(out, "Suggested: %s (enter to accept)\n", suggestion)
		}

		decision, quit, err := prompt(out, reader, suggestion, hasSuggestion)
		if err != nil {
			return err
		}
		if quit {
			break
		}
		if err := engine.Decide(ctx, txn.ID, decision); err != nil {
			// Bad category names should not eject the user from the loop.
			fmt.Fprintf(out, "Cannot apply: %v\n", err)
		}
	}

	remaining, err := s.ListUnreviewed(ctx, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d transaction(s) still unreviewed.\n", len(remaining))
	return nil
}

// prompt reads one decision from the user. It loops until the input parses.
func prompt(out io.Writer, reader *bufio.Scanner, suggestion string, hasSuggestion bool) (models.Decision, bool, error) {
	for {
		fmt.Fprint(out, "> ")
		if !reader.Scan() {
			if err := reader.Err(); err != nil {
				return models.Decision{}, false, err
			}
			return models.Decision{}, true, nil // EOF ends the session
		}

		decision, quit, ok := parseInput(reader.Text(), suggestion, hasSuggestion)
		if ok {
			return decision, quit, nil
		}
		fmt.Fprintln(out, "Unrecognized input; a/c/r <category>, i, ri, s, or q.")
	}
}

func parseInput(line, suggestion string, hasSuggestion bool) (models.Decision, bool, bool) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		if hasSuggestion {
			return models.Decision{Kind: models.DecideAssign, Category: suggestion}, false, true
		}
		return models.Decision{Kind: models.DecideSkip}, false, true
	}

	verb := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, verb))

	switch verb {
	case "a":
		if rest == "" {
			return models.Decision{}, false, false
		}
		return models.Decision{Kind: models.DecideAssign, Category: rest}, false, true
	case "c":
		if rest == "" {
			return models.Decision{}, false, false
		}
		return models.Decision{Kind: models.DecideCreateCategoryAndAssign, Category: rest}, false, true
	case "r":
		if rest == "" {
			return models.Decision{}, false, false
		}
		return models.Decision{Kind: models.DecidePersistAutoAllocate, Category: rest}, false, true
	case "i":
		return models.Decision{Kind: models.DecideIgnore}, false, true
	case "ri":
		return models.Decision{Kind: models.DecidePersistAutoIgnore}, false, true
	case "s":
		return models.Decision{Kind: models.DecideSkip}, false, true
	case "q":
		return models.Decision{}, true, true
	default:
		return models.Decision{}, false, false
	}
}
