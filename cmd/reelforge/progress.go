package main

import (
	"fmt"
	"io"
	"sync"

	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
)

// progressPrinter reports run and recording progress. On a terminal it
// redraws a single line; otherwise it prints sampled lines.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	sampler *logging.ProgressSampler
	drawn   bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:     out,
		tty:     isTerminal(out),
		sampler: logging.NewProgressSampler(25),
	}
}

// OnProgress implements pipeline.Observer.
func (p *progressPrinter) OnProgress(snapshot pipeline.Progress) {
	p.emit(formatProgress(snapshot), stagePercent(snapshot), string(snapshot.Stage))
}

// Recording reports encoder progress in percent.
func (p *progressPrinter) Recording(percent float64) {
	p.emit(fmt.Sprintf("recording %3.0f%%", percent), percent, "recording")
}

func (p *progressPrinter) emit(line string, percent float64, stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		fmt.Fprintf(p.out, "\r\x1b[2K%s", line)
		p.drawn = true
		return
	}
	if p.sampler.ShouldLog(percent, stage) {
		fmt.Fprintln(p.out, line)
	}
}

// Done ends the redrawn line.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
	p.sampler.Reset()
}

func formatProgress(p pipeline.Progress) string {
	switch p.Stage {
	case pipeline.StageIllustrating:
		return fmt.Sprintf("illustrating %d/%d images", p.Images.Completed, p.Images.Total)
	case pipeline.StageMatting:
		return fmt.Sprintf("removing backgrounds %d/%d", p.Matting.Completed, p.Matting.Total)
	case "":
		return "starting"
	default:
		return string(p.Stage)
	}
}

func stagePercent(p pipeline.Progress) float64 {
	var c pipeline.Counter
	switch p.Stage {
	case pipeline.StageIllustrating:
		c = p.Images
	case pipeline.StageMatting:
		c = p.Matting
	default:
		return -1
	}
	if c.Total == 0 {
		return -1
	}
	return float64(c.Completed) / float64(c.Total) * 100
}
