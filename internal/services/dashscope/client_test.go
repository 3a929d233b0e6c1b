package dashscope_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelforge/internal/poller"
	"reelforge/internal/services/apiclient"
	"reelforge/internal/services/dashscope"
)

func newClient(t *testing.T, handler http.HandlerFunc) *dashscope.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return dashscope.New(dashscope.Config{
		APIKey:        "sk-test",
		BaseURL:       srv.URL + "/api/v1",
		TTSModel:      "qwen3-tts-flash",
		ASRModel:      "paraformer-v2",
		Language:      "Chinese",
		LanguageHints: []string{"zh"},
		Timeout:       5 * time.Second,
	}, apiclient.WithSleeper(func(time.Duration) {}))
}

func TestNarrateReturnsAudioURL(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/services/aigc/multimodal-generation/generation" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var body struct {
			Model string `json:"model"`
			Input struct {
				Text         string `json:"text"`
				Voice        string `json:"voice"`
				LanguageType string `json:"language_type"`
			} `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Model != "qwen3-tts-flash" || body.Input.Text != "听好了，别怕。" || body.Input.Voice != "Ethan" || body.Input.LanguageType != "Chinese" {
			t.Errorf("unexpected request body: %+v", body)
		}
		_, _ = io.WriteString(w, `{"output":{"audio":{"url":"https://cdn.example/a.wav"}}}`)
	})

	url, err := client.Narrate(context.Background(), "听好了，别怕。", "Ethan")
	if err != nil {
		t.Fatalf("Narrate returned error: %v", err)
	}
	if url != "https://cdn.example/a.wav" {
		t.Fatalf("url = %q", url)
	}
}

func TestNarrateMissingURL(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"InvalidParameter","message":"bad voice"}`)
	})
	if _, err := client.Narrate(context.Background(), "hello", "Nobody"); err == nil {
		t.Fatal("expected error when audio url is missing")
	}
}

func TestSubmitTranscription(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/services/audio/asr/transcription" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-DashScope-Async") != "enable" {
			t.Errorf("missing async header")
		}
		var body struct {
			Model string `json:"model"`
			Input struct {
				FileURLs []string `json:"file_urls"`
			} `json:"input"`
			Parameters struct {
				ChannelID                 []int    `json:"channel_id"`
				LanguageHints             []string `json:"language_hints"`
				TimestampAlignmentEnabled bool     `json:"timestamp_alignment_enabled"`
			} `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Model != "paraformer-v2" || len(body.Input.FileURLs) != 1 || body.Input.FileURLs[0] != "https://cdn.example/a.wav" {
			t.Errorf("unexpected body: %+v", body)
		}
		if !body.Parameters.TimestampAlignmentEnabled || len(body.Parameters.ChannelID) != 1 {
			t.Errorf("unexpected parameters: %+v", body.Parameters)
		}
		_, _ = io.WriteString(w, `{"output":{"task_id":"task-1","task_status":"PENDING"}}`)
	})

	id, err := client.SubmitTranscription(context.Background(), "https://cdn.example/a.wav")
	if err != nil {
		t.Fatalf("SubmitTranscription returned error: %v", err)
	}
	if id != "task-1" {
		t.Fatalf("task id = %q", id)
	}
}

func TestTranscriptionStatus(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		status  poller.Status
		url     string
	}{
		{"running", `{"output":{"task_status":"RUNNING"}}`, poller.StatusRunning, ""},
		{"pending", `{"output":{"task_status":"PENDING"}}`, poller.StatusRunning, ""},
		{"succeeded", `{"output":{"task_status":"SUCCEEDED","results":[{"transcription_url":"https://cdn.example/t.json"}]}}`, poller.StatusSucceeded, "https://cdn.example/t.json"},
		{"succeeded without url", `{"output":{"task_status":"SUCCEEDED","results":[]}}`, poller.StatusFailed, ""},
		{"failed", `{"output":{"task_status":"FAILED","message":"audio unreadable"}}`, poller.StatusFailed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/api/v1/tasks/task-1" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				_, _ = io.WriteString(w, tt.payload)
			})
			poll, err := client.TranscriptionStatus(context.Background(), "task-1")
			if err != nil {
				t.Fatalf("TranscriptionStatus returned error: %v", err)
			}
			if poll.Status != tt.status || poll.TranscriptURL != tt.url {
				t.Fatalf("poll = %+v", poll)
			}
		})
	}
}

func TestFetchTranscriptDecodesDocument(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("transcript fetch must not hit the API base: %s", r.URL.Path)
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("transcript download must not carry credentials")
		}
		_, _ = io.WriteString(w, `{"transcripts":[{"channel_id":0,"sentences":[{"words":[
			{"text":"听好了","begin_time":0,"end_time":800,"punctuation":"，"},
			{"text":"别怕","begin_time":900,"end_time":1500,"punctuation":"。"}]}]}]}`)
	}))
	defer srv.Close()

	doc, err := client.FetchTranscript(context.Background(), srv.URL+"/t.json")
	if err != nil {
		t.Fatalf("FetchTranscript returned error: %v", err)
	}
	words := doc.Words()
	if len(words) != 2 || words[1].Punctuation != "。" || *words[1].EndTimeMS != 1500 {
		t.Fatalf("unexpected words: %+v", words)
	}
}
