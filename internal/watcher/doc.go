// Package watcher turns script files dropped into an inbox directory into
// finished recordings.
//
// The watcher reacts to fsnotify create and write events for *.txt files,
// processes any backlog present at startup, and runs at most a configured
// number of scripts at once. Processed scripts move to processed/ and
// scripts whose run failed move to failed/, both under the inbox.
package watcher
