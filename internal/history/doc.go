// Package history persists the most recent generation runs in SQLite.
//
// Each record keeps the request, the visual style, and the pipeline result so
// a run can be replayed or recorded again later. Put keeps only the newest
// MaxRecords entries.
package history
