// Package notifications delivers run events through ntfy.
//
// NewService publishes to the topic configured in config.toml and degrades to
// a no-op when no topic is set. Each event type can be switched off
// individually.
package notifications
