package history

import (
	"time"

	"github.com/google/uuid"

	"reelforge/internal/compositor"
	"reelforge/internal/pipeline"
)

// MaxRecords is the number of runs kept.
const MaxRecords = 10

const titleRunes = 20

// Record is one stored run.
type Record struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Request   pipeline.Request `json:"request"`
	Style     compositor.Style `json:"style"`
	Result    pipeline.Result  `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewRecord builds a record for a finished run.
func NewRecord(req pipeline.Request, style compositor.Style, result pipeline.Result) Record {
	created := result.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	id := result.RunID
	if id == "" {
		id = uuid.NewString()
	}
	return Record{
		ID:        id,
		Title:     Title(req.Script),
		Request:   req,
		Style:     style,
		Result:    result,
		CreatedAt: created.UTC(),
	}
}

// Title shortens a script to its first 20 characters, adding "..." when
// anything was cut.
func Title(script string) string {
	runes := []rune(script)
	if len(runes) <= titleRunes {
		return script
	}
	return string(runes[:titleRunes]) + "..."
}
