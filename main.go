package main

import (
	"fmt"
	"os"

	"tally/cmd/budget"
	"tally/cmd/initdb"
	"tally/cmd/inspect"
	"tally/cmd/list"
	"tally/cmd/report"
	"tally/cmd/review"
	"tally/cmd/root"
	"tally/cmd/sync"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(initdb.Cmd)
	root.Cmd.AddCommand(sync.Cmd)
	root.Cmd.AddCommand(review.Cmd)
	root.Cmd.AddCommand(list.Cmd)
	root.Cmd.AddCommand(report.Cmd)
	root.Cmd.AddCommand(inspect.Cmd)
	root.Cmd.AddCommand(budget.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
