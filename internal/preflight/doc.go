// Package preflight provides readiness checks for the directories, provider
// credentials, and binaries reelforge depends on.
//
// The CLI "status" command prints every result. "generate" and "watch" run
// RunAll first and refuse to start when a required check fails.
package preflight
