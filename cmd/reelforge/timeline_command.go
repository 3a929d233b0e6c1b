package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"reelforge/internal/app"
	"reelforge/internal/compositor"
	"reelforge/internal/history"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "timeline <run-id>",
		Short: "Show when each subtitle and image appears",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(a *app.App) error {
				rec, err := a.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries := buildTimeline(rec)
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					image := "-"
					if e.ImageStatus != "" {
						image = fmt.Sprintf("%s until %s", e.ImageStatus, formatSeconds(e.ImageUntil))
					}
					rows = append(rows, []string{
						strconv.Itoa(e.Index),
						formatSeconds(e.Start),
						formatSeconds(e.End),
						image,
						e.Text,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Start", "End", "Image", "Subtitle"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
					map[int]int{4: 48},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the timeline as JSON")
	return cmd
}

type timelineEntry struct {
	Index       int     `json:"index"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Text        string  `json:"text"`
	ImageStatus string  `json:"image_status,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	ImageUntil  float64 `json:"image_until,omitempty"`
}

func buildTimeline(rec history.Record) []timelineEntry {
	entries := make([]timelineEntry, 0, len(rec.Result.Subtitles))
	for i, seg := range rec.Result.Subtitles {
		entry := timelineEntry{Index: i, Start: seg.StartTime, End: seg.EndTime, Text: seg.Text}
		if i < len(rec.Result.Images) {
			img := rec.Result.Images[i]
			entry.ImageStatus = string(img.Status)
			entry.ImageURL = img.DisplayURL()
			entry.ImageUntil = img.StartTime + compositor.ImageDisplayWindow
		}
		entries = append(entries, entry)
	}
	return entries
}
