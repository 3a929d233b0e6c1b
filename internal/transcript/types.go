package transcript

// Word is one recognized token with millisecond timings. Timings are pointers
// so a missing field can be told apart from a zero offset.
type Word struct {
	Text        string `json:"text"`
	BeginTimeMS *int64 `json:"begin_time"`
	EndTimeMS   *int64 `json:"end_time"`
	Punctuation string `json:"punctuation"`
}

// Sentence groups words as returned by the recognizer.
type Sentence struct {
	Text  string `json:"text,omitempty"`
	Words []Word `json:"words"`
}

// Transcript is one channel of a recognition result.
type Transcript struct {
	ChannelID int        `json:"channel_id"`
	Text      string     `json:"text,omitempty"`
	Sentences []Sentence `json:"sentences"`
}

// Document is a transcript file. Recognizers return the nested transcripts
// form; the flattened sentences form is accepted for hand-written fixtures.
type Document struct {
	Transcripts []Transcript `json:"transcripts,omitempty"`
	Sentences   []Sentence   `json:"sentences,omitempty"`
}

// Words flattens every sentence of the first transcript in order, falling back
// to top-level sentences.
func (d Document) Words() []Word {
	sentences := d.Sentences
	if len(d.Transcripts) > 0 {
		sentences = d.Transcripts[0].Sentences
	}
	var words []Word
	for _, sentence := range sentences {
		words = append(words, sentence.Words...)
	}
	return words
}

// Segment is one subtitle line with its display window in seconds.
type Segment struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Contains reports whether t falls inside the closed window [start, end].
func (s Segment) Contains(t float64) bool {
	return t >= s.StartTime && t <= s.EndTime
}

// NewWord is a convenience constructor for fixtures and providers that already
// hold integer timings.
func NewWord(text string, beginMS, endMS int64, punctuation string) Word {
	return Word{Text: text, BeginTimeMS: &beginMS, EndTimeMS: &endMS, Punctuation: punctuation}
}
