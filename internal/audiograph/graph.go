package audiograph

import (
	"sync"
)

// Source plays one buffer, optionally looping.
type Source struct {
	buf     Buffer
	loop    bool
	pos     int
	playing bool
}

// NewSource wraps buf.
func NewSource(buf Buffer, loop bool) *Source {
	return &Source{buf: buf, loop: loop}
}

// Duration is the length of the underlying buffer.
func (s *Source) Duration() float64 { return s.buf.Duration() }

// mixInto adds frames of gained audio into out and advances the source.
func (s *Source) mixInto(out []float32, frames, channels int, gain float32) {
	total := s.buf.Frames()
	if !s.playing || total == 0 || gain == 0 {
		s.advance(frames)
		return
	}
	for f := 0; f < frames; f++ {
		if s.pos >= total {
			if !s.loop {
				s.playing = false
				return
			}
			s.pos = 0
		}
		src := s.pos * s.buf.Channels
		dst := f * channels
		for c := 0; c < channels; c++ {
			out[dst+c] += s.buf.Samples[src+c%s.buf.Channels] * gain
		}
		s.pos++
	}
}

func (s *Source) advance(frames int) {
	total := s.buf.Frames()
	if !s.playing || total == 0 {
		return
	}
	s.pos += frames
	if s.pos >= total {
		if s.loop {
			s.pos %= total
		} else {
			s.playing = false
		}
	}
}

// GainNode scales one source before the destination.
type GainNode struct {
	mu    sync.Mutex
	value float64
}

// Set changes the gain.
func (g *GainNode) Set(value float64) {
	g.mu.Lock()
	g.value = value
	g.mu.Unlock()
}

// Value returns the current gain.
func (g *GainNode) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

type connection struct {
	source *Source
	gain   *GainNode
}

// Graph mixes sources through gain nodes into a single destination. Its clock
// is the number of frames rendered so far, so time only advances as audio is
// produced.
type Graph struct {
	mu          sync.Mutex
	sampleRate  int
	channels    int
	connections []connection
	rendered    int64
}

// NewGraph creates an empty graph.
func NewGraph(sampleRate, channels int) *Graph {
	if channels <= 0 {
		channels = Channels
	}
	return &Graph{sampleRate: sampleRate, channels: channels}
}

// SampleRate of the destination.
func (g *Graph) SampleRate() int { return g.sampleRate }

// Channels of the destination.
func (g *Graph) Channels() int { return g.channels }

// Connect routes src through a new gain node into the destination.
func (g *Graph) Connect(src *Source, gain float64) *GainNode {
	node := &GainNode{value: gain}
	g.mu.Lock()
	g.connections = append(g.connections, connection{source: src, gain: node})
	g.mu.Unlock()
	return node
}

// Start begins playback of every connected source at the current clock.
func (g *Graph) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.connections {
		c.source.playing = true
	}
}

// Stop halts every source. Subsequent renders produce silence.
func (g *Graph) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.connections {
		c.source.playing = false
	}
}

// Render produces the next frames of mixed audio, clamped to [-1, 1].
func (g *Graph) Render(frames int) []float32 {
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*g.channels)
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.connections {
		c.source.mixInto(out, frames, g.channels, float32(c.gain.Value()))
	}
	for i, s := range out {
		switch {
		case s > 1:
			out[i] = 1
		case s < -1:
			out[i] = -1
		}
	}
	g.rendered += int64(frames)
	return out
}

// Elapsed is the destination clock in seconds.
func (g *Graph) Elapsed() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sampleRate <= 0 {
		return 0
	}
	return float64(g.rendered) / float64(g.sampleRate)
}

// RenderedFrames is the destination clock in frames.
func (g *Graph) RenderedFrames() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rendered
}
