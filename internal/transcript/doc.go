// Package transcript parses word-level recognition results and folds them into
// timed subtitle segments.
//
// Segments close on clause or sentence punctuation (comma or period, full- or
// half-width) and always on the final word, so a transcript without any
// punctuation still yields one segment spanning the narration.
package transcript
