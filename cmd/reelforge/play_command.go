package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"reelforge/internal/app"
	"reelforge/internal/compositor"
)

func newPlayCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <run-id>",
		Short: "Play a stored run's audio and follow along in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(a *app.App) error {
				rec, err := a.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Playing %s (%s); press Ctrl+C to stop\n", rec.ID, rec.Title)
				return a.Play(cmd.Context(), rec, rec.Style, terminalView(cmd.OutOrStdout()))
			})
		},
	}
	return cmd
}

// terminalView prints a line whenever the subtitle or image on screen
// changes. Entrance animation frames are not reported.
func terminalView(out io.Writer) compositor.View {
	var last string
	return compositor.ViewFunc(func(t float64, state compositor.VisualState) {
		var line string
		if state.Image != nil {
			line = fmt.Sprintf("[image %d] ", state.Image.Index)
		}
		if state.Subtitle != nil {
			line += state.Subtitle.Text
		}
		if line == last {
			return
		}
		last = line
		fmt.Fprintf(out, "%s  %s\n", formatSeconds(t), line)
	})
}
