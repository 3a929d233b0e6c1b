// Package dashscope talks to the DashScope speech endpoints: text-to-speech for
// narration and the asynchronous file transcription service.
package dashscope

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/pipeline"
	"reelforge/internal/poller"
	"reelforge/internal/services"
	"reelforge/internal/services/apiclient"
	"reelforge/internal/transcript"
)

const (
	ttsPath           = "services/aigc/multimodal-generation/generation"
	transcriptionPath = "services/audio/asr/transcription"
	taskPath          = "tasks"

	taskSucceeded = "SUCCEEDED"
	taskFailed    = "FAILED"
)

// Config captures the settings needed to reach DashScope.
type Config struct {
	APIKey        string
	BaseURL       string
	TTSModel      string
	ASRModel      string
	Language      string
	LanguageHints []string
	Timeout       time.Duration
}

// ConfigFrom extracts client settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		APIKey:        cfg.DashScope.APIKey,
		BaseURL:       cfg.DashScope.BaseURL,
		TTSModel:      cfg.DashScope.TTSModel,
		ASRModel:      cfg.DashScope.ASRModel,
		Language:      cfg.DashScope.Language,
		LanguageHints: append([]string(nil), cfg.DashScope.LanguageHints...),
		Timeout:       time.Duration(cfg.DashScope.TimeoutSeconds) * time.Second,
	}
}

// Client implements narration, transcription submission, status checks and
// transcript download.
type Client struct {
	cfg  Config
	api  *apiclient.Client
	file *apiclient.Client
}

// New constructs a DashScope client. Extra options are forwarded to the
// underlying HTTP client (retry tuning, test transports).
func New(cfg Config, opts ...apiclient.Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	base := append([]apiclient.Option{apiclient.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		cfg:  cfg,
		api:  apiclient.New("dashscope", cfg.BaseURL, cfg.APIKey, base...),
		file: apiclient.New("dashscope transcript", "", "", base...),
	}
}

var (
	_ pipeline.Narrator          = (*Client)(nil)
	_ pipeline.Transcriber       = (*Client)(nil)
	_ pipeline.TranscriptFetcher = (*Client)(nil)
)

type ttsRequest struct {
	Model string   `json:"model"`
	Input ttsInput `json:"input"`
}

type ttsInput struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	LanguageType string `json:"language_type,omitempty"`
}

type ttsResponse struct {
	Output struct {
		Audio struct {
			URL string `json:"url"`
		} `json:"audio"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Narrate synthesizes text with the given voice and returns the audio URL.
func (c *Client) Narrate(ctx context.Context, text, voice string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrValidation, "narrating", "tts", "empty text", nil)
	}
	var resp ttsResponse
	err := c.api.DoJSON(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   ttsPath,
		Body: apiclient.JSONBody(ttsRequest{
			Model: c.cfg.TTSModel,
			Input: ttsInput{Text: text, Voice: voice, LanguageType: c.cfg.Language},
		}),
	}, &resp)
	if err != nil {
		return "", err
	}
	audioURL := strings.TrimSpace(resp.Output.Audio.URL)
	if audioURL == "" {
		return "", fmt.Errorf("tts response missing audio url%s", describe(resp.Code, resp.Message))
	}
	return audioURL, nil
}

type transcriptionRequest struct {
	Model      string                  `json:"model"`
	Input      transcriptionInput      `json:"input"`
	Parameters transcriptionParameters `json:"parameters"`
}

type transcriptionInput struct {
	FileURLs []string `json:"file_urls"`
}

type transcriptionParameters struct {
	ChannelID                 []int    `json:"channel_id"`
	LanguageHints             []string `json:"language_hints,omitempty"`
	TimestampAlignmentEnabled bool     `json:"timestamp_alignment_enabled"`
}

type taskResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Message    string `json:"message"`
		Code       string `json:"code"`
		Results    []struct {
			FileURL          string `json:"file_url"`
			TranscriptionURL string `json:"transcription_url"`
			SubtaskStatus    string `json:"subtask_status"`
			Message          string `json:"message"`
		} `json:"results"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SubmitTranscription starts an asynchronous transcription job for audioURL.
func (c *Client) SubmitTranscription(ctx context.Context, audioURL string) (string, error) {
	var resp taskResponse
	err := c.api.DoJSON(ctx, apiclient.Request{
		Method:  http.MethodPost,
		Path:    transcriptionPath,
		Headers: map[string]string{"X-DashScope-Async": "enable"},
		Body: apiclient.JSONBody(transcriptionRequest{
			Model: c.cfg.ASRModel,
			Input: transcriptionInput{FileURLs: []string{audioURL}},
			Parameters: transcriptionParameters{
				ChannelID:                 []int{0},
				LanguageHints:             c.cfg.LanguageHints,
				TimestampAlignmentEnabled: true,
			},
		}),
	}, &resp)
	if err != nil {
		return "", err
	}
	taskID := strings.TrimSpace(resp.Output.TaskID)
	if taskID == "" {
		return "", fmt.Errorf("transcription response missing task id%s", describe(resp.Code, resp.Message))
	}
	return taskID, nil
}

// TranscriptionStatus reports the state of a transcription job.
func (c *Client) TranscriptionStatus(ctx context.Context, taskID string) (pipeline.TranscriptionPoll, error) {
	var resp taskResponse
	if err := c.api.DoJSON(ctx, apiclient.Request{Path: taskPath + "/" + taskID}, &resp); err != nil {
		return pipeline.TranscriptionPoll{}, err
	}
	switch strings.ToUpper(resp.Output.TaskStatus) {
	case taskSucceeded:
		if len(resp.Output.Results) == 0 || strings.TrimSpace(resp.Output.Results[0].TranscriptionURL) == "" {
			return pipeline.TranscriptionPoll{
				Status:  poller.StatusFailed,
				Message: "task succeeded without a transcription url",
			}, nil
		}
		return pipeline.TranscriptionPoll{
			Status:        poller.StatusSucceeded,
			TranscriptURL: resp.Output.Results[0].TranscriptionURL,
		}, nil
	case taskFailed:
		message := resp.Output.Message
		if message == "" && len(resp.Output.Results) > 0 {
			message = resp.Output.Results[0].Message
		}
		if message == "" {
			message = resp.Output.Code
		}
		return pipeline.TranscriptionPoll{Status: poller.StatusFailed, Message: message}, nil
	default:
		return pipeline.TranscriptionPoll{Status: poller.StatusRunning}, nil
	}
}

// FetchTranscript downloads and decodes a transcript file.
func (c *Client) FetchTranscript(ctx context.Context, url string) (transcript.Document, error) {
	resp, err := c.file.Do(ctx, apiclient.Request{Path: url})
	if err != nil {
		return transcript.Document{}, err
	}
	var doc transcript.Document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return transcript.Document{}, fmt.Errorf("decode transcript: %w", err)
	}
	return doc, nil
}

func describe(code, message string) string {
	code = strings.TrimSpace(code)
	message = strings.TrimSpace(message)
	switch {
	case code != "" && message != "":
		return fmt.Sprintf(" (%s: %s)", code, message)
	case message != "":
		return " (" + message + ")"
	case code != "":
		return " (" + code + ")"
	}
	return ""
}
