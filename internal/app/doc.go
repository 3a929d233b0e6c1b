// Package app assembles the providers, orchestrator, recorder and stores
// from configuration and exposes the run lifecycle shared by the CLI, the
// HTTP API and the inbox watcher: generate, store in history, notify, record,
// and save the video.
package app
