package preflight

import (
	"context"

	"reelforge/internal/config"
	"reelforge/internal/matting"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional failures are reported but do not block a run.
	Optional bool
}

// RunAll executes the checks that apply to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results,
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	)
	if cfg.Paths.InboxDir != "" {
		inbox := CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir)
		inbox.Optional = true
		results = append(results, inbox)
	}

	results = append(results,
		CheckAPIKey("DashScope API key", cfg.DashScope.APIKey),
		CheckAPIKey("Evolink API key", cfg.Evolink.APIKey),
	)
	mode, _ := matting.ParseMode(cfg.Pipeline.Matting)
	if mode == matting.ModeRemoveBGAPI || mode == matting.ModeAuto {
		removeBG := CheckAPIKey("remove.bg API key", cfg.RemoveBG.APIKey)
		removeBG.Optional = mode == matting.ModeAuto
		results = append(results, removeBG)
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Detail:   statusDetail(status.Command, status.Detail),
			Optional: status.Optional,
		})
	}
	return results
}

// Blocking returns the failed checks that are not optional.
func Blocking(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

func statusDetail(command, detail string) string {
	if detail == "" {
		return command
	}
	return detail
}
