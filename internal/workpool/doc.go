// Package workpool runs independent work items with a hard cap on how many are
// in flight, keeping each result at its input index.
//
// Admission is slot based: a new item starts as soon as any running item
// settles, so one slow item never holds back the rest of the batch. Item
// failures are turned into results by a caller-supplied fallback and never
// abort the batch.
package workpool
