// Command reelforge turns a narration script into an illustrated short
// video.
//
// Subcommands generate runs, inspect and replay them from history, record
// them to video files, and expose the same lifecycle over HTTP (serve) or an
// inbox directory (watch).
package main
