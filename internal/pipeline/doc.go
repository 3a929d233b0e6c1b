// Package pipeline turns a script into a playable result: narration audio,
// time-aligned subtitle segments and one illustration per segment.
//
// Stages run in order: narrating, transcribing (submit then poll),
// fetching-transcript (download then segment), illustrating and, when the
// matting mode requires it, matting. The first four stages are fatal on error.
// Illustration and matting run through a bounded worker pool and fall back per
// image: a failed illustration shows the character reference, a failed matte
// keeps the raw image. Observers see a Progress snapshot after every change.
package pipeline
