package transcript

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"

	"reelforge/internal/services"
)

// SplitWords folds words into subtitle segments.
func SplitWords(words []Word) ([]Segment, error) {
	if len(words) == 0 {
		return nil, services.Wrap(services.ErrMalformedTranscript, "segmenting", "segment", "transcript has no words", nil)
	}

	segments := make([]Segment, 0, len(words)/4+1)
	var (
		text    strings.Builder
		startMS int64
		open    bool
	)
	for i, word := range words {
		if word.BeginTimeMS == nil || word.EndTimeMS == nil {
			return nil, services.Wrap(services.ErrMalformedTranscript, "segmenting", "segment",
				fmt.Sprintf("word %d (%q) is missing timestamps", i, word.Text), nil)
		}
		if !open {
			startMS = *word.BeginTimeMS
			open = true
		}
		text.WriteString(word.Text)
		text.WriteString(word.Punctuation)

		if IsTerminator(word.Punctuation) || i == len(words)-1 {
			segments = append(segments, Segment{
				Text:      text.String(),
				StartTime: float64(startMS) / 1000,
				EndTime:   float64(*word.EndTimeMS) / 1000,
			})
			text.Reset()
			open = false
		}
	}
	return segments, nil
}

// SegmentDocument segments every word of a transcript document.
func SegmentDocument(doc Document) ([]Segment, error) {
	return SplitWords(doc.Words())
}

// IsTerminator reports whether punctuation closes a subtitle segment. Full-width
// forms are folded first so "，" and "," behave alike; the ideographic full
// stop has no narrow form and is matched directly.
func IsTerminator(punctuation string) bool {
	p := strings.TrimSpace(width.Narrow.String(punctuation))
	if p == "" {
		return false
	}
	switch p {
	case ",", ".", "。", "｡":
		return true
	}
	return false
}
