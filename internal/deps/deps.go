package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/matting"
)

// Requirement defines an external binary reelforge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configuration needs. The local matting
// command is required only when the configured mode relies on it.
func Requirements(cfg *config.Config) []Requirement {
	mode, _ := matting.ParseMode(cfg.Pipeline.Matting)
	localNeeded := mode == matting.ModeAIRemove
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Recording.FFmpegBinary, Description: "Decodes audio and encodes recordings"},
		{Name: "FFprobe", Command: cfg.Recording.FFprobeBinary, Description: "Validates recordings", Optional: true},
		{Name: "FFplay", Command: cfg.Recording.FFplayBinary, Description: "Plays narration during preview", Optional: true},
		{Name: "Local matting", Command: cfg.LocalMatting.Command, Description: "Removes image backgrounds on this host", Optional: !localNeeded},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	return missing
}
