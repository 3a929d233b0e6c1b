// Package ffprobe wraps ffprobe's JSON output.
//
// Prober runs ffprobe through an injectable runner. Result exposes stream and
// duration helpers, and Validate checks an encoded recording against the
// canvas and narration it was produced from.
package ffprobe
