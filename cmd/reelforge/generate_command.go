package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/app"
	"reelforge/internal/compositor"
	"reelforge/internal/config"
	"reelforge/internal/history"
	"reelforge/internal/pipeline"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		scriptFile string
		overrides  pipeline.Overrides
		music      string
		record     bool
		outputDir  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "generate [script text...]",
		Short: "Narrate, transcribe, and illustrate a script",
		Long: "Generate a run from script text given as arguments, read from --file,\n" +
			"or piped on stdin. The finished run is stored in history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScriptInput(cmd.InOrStdin(), scriptFile, args)
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app.App) error {
				req, err := overrides.Apply(pipeline.RequestFromConfig(a.Config, script))
				if err != nil {
					return err
				}
				style := a.Style(compositor.Style{Music: music})

				progress := newProgressPrinter(cmd.ErrOrStderr())
				rec, err := a.Generate(cmd.Context(), req, style, progress)
				progress.Done()
				if err != nil {
					return err
				}

				var savedPath string
				if record {
					savedPath, err = recordAndSave(cmd, a, rec, rec.Style, outputDir)
					if err != nil {
						return err
					}
				}

				if jsonOutput {
					return writeJSON(cmd, generateOutput{Record: rec, RecordingPath: savedPath})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s (%s)\n", rec.ID, rec.Title)
				fmt.Fprintln(out, renderImageTable(rec))
				if savedPath != "" {
					fmt.Fprintf(out, "Recording saved to %s\n", savedPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scriptFile, "file", "f", "", "Read the script from a file (- for stdin)")
	cmd.Flags().StringVar(&overrides.Voice, "voice", "", "Narration voice")
	cmd.Flags().StringVar(&overrides.Model, "model", "", "Image model")
	cmd.Flags().StringVar(&overrides.CharacterImage, "character-image", "", "Character reference image (URL or path)")
	cmd.Flags().StringVar(&overrides.Matting, "matting", "", "Background handling mode")
	cmd.Flags().BoolVar(&overrides.DisableRemoval, "no-background-removal", false, "Keep generated image backgrounds")
	cmd.Flags().StringVar(&music, "music", "", "Background music (URL or path)")
	cmd.Flags().BoolVar(&record, "record", false, "Record the run to a video file when it finishes")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the recording (default paths.output_dir)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

type generateOutput struct {
	history.Record
	RecordingPath string `json:"recording_path,omitempty"`
}

// readScriptInput takes the script from file, args, or stdin in that order.
func readScriptInput(stdin io.Reader, file string, args []string) (string, error) {
	var data []byte
	var err error
	switch {
	case file == "-":
		data, err = io.ReadAll(stdin)
	case file != "":
		path, expandErr := config.ExpandPath(file)
		if expandErr != nil {
			return "", expandErr
		}
		data, err = os.ReadFile(path)
	case len(args) > 0:
		data = []byte(strings.Join(args, " "))
	default:
		return "", errors.New("script text is required (pass it as arguments, --file, or --file -)")
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	script := strings.TrimSpace(string(data))
	if script == "" {
		return "", errors.New("script is empty")
	}
	return script, nil
}

func recordAndSave(cmd *cobra.Command, a *app.App, rec history.Record, style compositor.Style, dir string) (string, error) {
	progress := newProgressPrinter(cmd.ErrOrStderr())
	recording, err := a.Record(cmd.Context(), rec, style, progress.Recording)
	progress.Done()
	if err != nil {
		return "", err
	}
	return a.SaveRecording(cmd.Context(), rec, recording, dir)
}

func renderImageTable(rec history.Record) string {
	rows := make([][]string, 0, len(rec.Result.Images))
	for _, img := range rec.Result.Images {
		rows = append(rows, []string{
			fmt.Sprintf("%d", img.Index),
			formatSeconds(img.StartTime),
			string(img.Status),
			yesNo(img.ProcessedURL != ""),
			img.SourceText,
		})
	}
	return renderTable(
		[]string{"#", "Start", "Status", "Matted", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
		map[int]int{4: 48},
	)
}

func formatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int(seconds) / 60
	return fmt.Sprintf("%02d:%04.1f", minutes, seconds-float64(minutes*60))
}
