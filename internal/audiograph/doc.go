// Package audiograph is a small offline audio graph: decoded buffers feed
// sources, each source passes through a gain node, and every gain node sums
// into one destination. The destination clock only advances as frames are
// rendered, which makes it the master clock for recording. Playback streams
// the same graph to ffplay for live preview.
package audiograph
