package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelforge/internal/app"
)

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "regenerate <run-id> <image-index>",
		Short: "Generate a new illustration for one subtitle segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid image index %q", args[1])
			}
			return ctx.withApp(func(a *app.App) error {
				rec, err := a.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				updated, err := a.Regenerate(cmd.Context(), rec, index)
				if err != nil {
					return err
				}
				task := updated.Result.Images[index]
				if jsonOutput {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Image %d %s: %s\n", task.Index, task.Status, task.DisplayURL())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the image task as JSON")
	return cmd
}
