// Package server exposes runs, recordings and history over HTTP.
//
// Runs started through POST /api/runs execute in the background and are
// tracked in an in-memory registry so clients can poll their progress.
// Finished runs are also looked up in history, so regeneration and recording
// work for runs started by another process.
package server
