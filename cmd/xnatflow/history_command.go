package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"xnatflow/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled workflow pushes, newest first or for one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var entries []journal.Entry
			title := "Recent pushes"
			if len(args) == 1 {
				runID := strings.TrimSpace(args[0])
				entries, err = store.ListRun(cmd.Context(), runID)
				title = "Run " + runID
			} else {
				entries, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No journal entries")
				return nil
			}
			fmt.Fprintln(out, renderHistory(title, entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent entries to show")
	return cmd
}

func renderHistory(title string, entries []journal.Entry) string {
	caser := cases.Title(language.English)
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		operation := caser.String(strings.ReplaceAll(string(e.Operation), "_", " "))
		outcome := caser.String(string(e.Outcome))
		if e.ErrorKind != "" {
			outcome += " (" + e.ErrorKind + ")"
		}
		rows = append(rows, []string{
			e.RecordedAt.Local().Format(time.DateTime),
			e.RunID,
			dash(e.WorkflowID),
			operation,
			dash(e.Status),
			dash(e.Percent),
			dash(e.StepID),
			outcome,
		})
	}
	return renderTable(title,
		[]string{"Time", "Run", "Workflow", "Operation", "Status", "Percent", "Step", "Outcome"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft})
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
