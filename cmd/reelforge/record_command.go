package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/app"
	"reelforge/internal/compositor"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		outputDir   string
		music       string
		musicVolume float64
	)

	cmd := &cobra.Command{
		Use:   "record <run-id>",
		Short: "Render a stored run to a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(a *app.App) error {
				rec, err := a.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				override := compositor.Style{Music: music}
				if cmd.Flags().Changed("music-volume") {
					override.MusicVolume = compositor.Float(musicVolume)
				}
				style := rec.Style.Merge(override)
				path, err := recordAndSave(cmd, a, rec, style, outputDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording saved to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the recording (default paths.output_dir)")
	cmd.Flags().StringVar(&music, "music", "", "Background music (URL or path)")
	cmd.Flags().Float64Var(&musicVolume, "music-volume", 0, "Background music gain (0-1, 0 mutes)")
	return cmd
}
