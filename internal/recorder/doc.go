// Package recorder turns a finished pipeline result into an encoded video.
//
// A recording session owns a painter, an audio graph, and an ffmpeg encoder.
// The graph is the clock: each tick paints the frame for the graph's elapsed
// time and renders the matching slice of narration and music. The session
// stops once the narration has been fully rendered. Only one session may run
// at a time, both within a process and, through a lock file, across processes.
package recorder
