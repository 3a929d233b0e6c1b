package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelforge/internal/app"
	"reelforge/internal/history"
	"reelforge/internal/pipeline"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(a *app.App) error {
				records, err := a.History.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No runs in history")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						rec.ID,
						rec.Title,
						rec.CreatedAt.Local().Format("2006-01-02 15:04"),
						strconv.Itoa(len(rec.Result.Images)),
						strconv.Itoa(fallbackCount(rec)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Created", "Images", "Fallbacks"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
					nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(a *app.App) error {
				rec, err := a.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:        %s\n", rec.ID)
				fmt.Fprintf(out, "Title:      %s\n", rec.Title)
				fmt.Fprintf(out, "Created:    %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "Voice:      %s\n", rec.Request.Voice)
				fmt.Fprintf(out, "Model:      %s\n", rec.Request.Model)
				fmt.Fprintf(out, "Matting:    %s\n", rec.Request.Matting)
				fmt.Fprintf(out, "Audio:      %s\n", rec.Result.AudioURL)
				fmt.Fprintf(out, "Subtitles:  %d\n", len(rec.Result.Subtitles))
				fmt.Fprintln(out, renderImageTable(rec))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(a *app.App) error {
				n, err := a.History.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) from history\n", n)
				return nil
			})
		},
	}
}

func fallbackCount(rec history.Record) int {
	n := 0
	for _, img := range rec.Result.Images {
		if img.Status == pipeline.ImageFailedFallback {
			n++
		}
	}
	return n
}
