package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/app"
	"reelforge/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Generate and record every script dropped into the inbox",
		Long: "Watch paths.inbox_dir for *.txt scripts. Each script is generated,\n" +
			"recorded into paths.output_dir, and moved to processed/ or failed/.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", a.Config.Paths.InboxDir)
				return runWatcher(cmd.Context(), a)
			})
		},
	}
}

func runWatcher(ctx context.Context, a *app.App) error {
	handler := watcher.ScriptHandler(a, requestDefaults(a), a.Config.Paths.OutputDir, a.Logger)
	w := watcher.New(a.Config.Paths.InboxDir, handler, a.Config.Pipeline.WatchConcurrency, watcher.WithLogger(a.Logger))
	return w.Run(ctx)
}
