package transcript_test

import (
	"encoding/json"
	"errors"
	"testing"

	"reelforge/internal/services"
	"reelforge/internal/transcript"
)

func TestSegmentSplitsOnClausePunctuation(t *testing.T) {
	words := []transcript.Word{
		transcript.NewWord("听好了", 0, 500, "，"),
		transcript.NewWord("别怕", 600, 900, "。"),
	}
	got, err := transcript.SplitWords(words)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	want := []transcript.Segment{
		{Text: "听好了，", StartTime: 0.0, EndTime: 0.5},
		{Text: "别怕。", StartTime: 0.6, EndTime: 0.9},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d segments, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSegmentWithoutPunctuationYieldsOneSegment(t *testing.T) {
	words := []transcript.Word{
		transcript.NewWord("从", 0, 200, ""),
		transcript.NewWord("今儿", 200, 450, ""),
		transcript.NewWord("起", 450, 700, ""),
	}
	got, err := transcript.SplitWords(words)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one segment, got %+v", got)
	}
	if got[0].Text != "从今儿起" || got[0].StartTime != 0 || got[0].EndTime != 0.7 {
		t.Fatalf("unexpected segment: %+v", got[0])
	}
}

func TestSegmentAcceptsHalfWidthTerminators(t *testing.T) {
	words := []transcript.Word{
		transcript.NewWord("listen", 0, 300, ","),
		transcript.NewWord("now", 400, 700, "."),
		transcript.NewWord("ok", 800, 900, "!"),
	}
	got, err := transcript.SplitWords(words)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %+v", got)
	}
	if got[2].Text != "ok!" {
		t.Fatalf("last word should close the final segment, got %+v", got[2])
	}
}

func TestSegmentInvariants(t *testing.T) {
	puncts := []string{"", "，", "", "", "。", "！", "", ",", "", ""}
	var words []transcript.Word
	var cursor int64
	for i := 0; i < 40; i++ {
		begin := cursor
		end := begin + int64(100+i*7)
		cursor = end + int64(i%3)*20
		words = append(words, transcript.NewWord("字", begin, end, puncts[i%len(puncts)]))
	}
	segments, err := transcript.SplitWords(words)
	if err != nil {
		t.Fatalf("Segment returned error: %v", err)
	}
	for i, seg := range segments {
		if seg.EndTime < seg.StartTime {
			t.Fatalf("segment %d ends before it starts: %+v", i, seg)
		}
		if i > 0 {
			prev := segments[i-1]
			if seg.StartTime < prev.StartTime {
				t.Fatalf("segment %d starts before segment %d", i, i-1)
			}
			if seg.StartTime < prev.EndTime {
				t.Fatalf("segment %d overlaps segment %d", i, i-1)
			}
		}
	}
	last := segments[len(segments)-1]
	if want := float64(*words[len(words)-1].EndTimeMS) / 1000; last.EndTime != want {
		t.Fatalf("final segment ends at %v, want %v", last.EndTime, want)
	}
}

func TestSegmentRejectsMalformedInput(t *testing.T) {
	begin := int64(0)
	tests := []struct {
		name  string
		words []transcript.Word
	}{
		{"empty", nil},
		{"missing end", []transcript.Word{{Text: "x", BeginTimeMS: &begin}}},
		{"missing begin", []transcript.Word{transcript.NewWord("a", 0, 10, ""), {Text: "b", EndTimeMS: &begin}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transcript.SplitWords(tt.words)
			if !errors.Is(err, services.ErrMalformedTranscript) {
				t.Fatalf("expected malformed transcript error, got %v", err)
			}
		})
	}
}

func TestDocumentWordsFlattensSentences(t *testing.T) {
	raw := `{
	  "transcripts": [{
	    "channel_id": 0,
	    "sentences": [
	      {"words": [{"text": "听好了", "begin_time": 0, "end_time": 500, "punctuation": "，"}]},
	      {"words": [{"text": "别怕", "begin_time": 600, "end_time": 900, "punctuation": "。"}]}
	    ]
	  }]
	}`
	var doc transcript.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	segments, err := transcript.SegmentDocument(doc)
	if err != nil {
		t.Fatalf("SegmentDocument returned error: %v", err)
	}
	if len(segments) != 2 || segments[1].Text != "别怕。" {
		t.Fatalf("unexpected segments: %+v", segments)
	}
}

func TestDocumentWordsAcceptsFlatSentences(t *testing.T) {
	raw := `{"sentences": [{"words": [{"text": "火", "begin_time": 10, "end_time": 20, "punctuation": ""}]}]}`
	var doc transcript.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if words := doc.Words(); len(words) != 1 || words[0].Text != "火" {
		t.Fatalf("unexpected words: %+v", words)
	}
}

func TestIsTerminator(t *testing.T) {
	for _, p := range []string{"，", "。", ",", ".", "．", " , "} {
		if !transcript.IsTerminator(p) {
			t.Errorf("expected %q to terminate", p)
		}
	}
	for _, p := range []string{"", "！", "？", "、", ";"} {
		if transcript.IsTerminator(p) {
			t.Errorf("expected %q not to terminate", p)
		}
	}
}
