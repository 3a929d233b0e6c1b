package compositor

import (
	"context"
	"time"

	"reelforge/internal/pipeline"
)

// Clock reports the narration playhead in seconds.
type Clock interface {
	Elapsed() float64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() float64

// Elapsed calls f.
func (f ClockFunc) Elapsed() float64 { return f() }

// View receives visual states when they change.
type View interface {
	Show(t float64, state VisualState)
}

// ViewFunc adapts a function to View.
type ViewFunc func(t float64, state VisualState)

// Show calls f.
func (f ViewFunc) Show(t float64, state VisualState) { f(t, state) }

// DefaultTick is roughly one display refresh.
const DefaultTick = 16 * time.Millisecond

// Player drives a View from a Clock during live playback.
type Player struct {
	Result   pipeline.Result
	Clock    Clock
	View     View
	Duration float64
	Tick     time.Duration
}

// Run samples the clock every tick and shows the visual state whenever it
// changes. It returns nil once the clock passes Duration (when positive) and
// ctx.Err() when canceled.
func (p *Player) Run(ctx context.Context) error {
	tick := p.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var (
		last  VisualState
		shown bool
	)
	for {
		t := p.Clock.Elapsed()
		if p.Duration > 0 && t >= p.Duration {
			if shown && !last.Same(VisualState{}) {
				p.View.Show(p.Duration, VisualState{})
			}
			return nil
		}
		state := DeriveVisualState(t, p.Result)
		if !shown || !state.Same(last) {
			p.View.Show(t, state)
			last, shown = state, true
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
