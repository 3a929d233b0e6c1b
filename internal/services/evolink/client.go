// Package evolink generates illustrations through the Evolink asynchronous
// image API: a generation task is created and then polled until it settles.
package evolink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/poller"
	"reelforge/internal/services/apiclient"
)

const (
	generationsPath = "images/generations"
	tasksPath       = "tasks"

	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Config captures the settings needed to reach Evolink.
type Config struct {
	APIKey       string
	BaseURL      string
	Size         string
	PollInterval time.Duration
	PollAttempts int
	Timeout      time.Duration
}

// ConfigFrom extracts client settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		APIKey:       cfg.Evolink.APIKey,
		BaseURL:      cfg.Evolink.BaseURL,
		Size:         cfg.Evolink.Size,
		PollInterval: time.Duration(cfg.Evolink.PollIntervalSeconds) * time.Second,
		PollAttempts: cfg.Evolink.PollAttempts,
		Timeout:      time.Duration(cfg.Evolink.TimeoutSeconds) * time.Second,
	}
}

// Client implements pipeline.Illustrator.
type Client struct {
	cfg    Config
	api    *apiclient.Client
	sleep  func(context.Context, time.Duration) error
	logger *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithAPIOptions forwards options to the underlying HTTP client.
func WithAPIOptions(opts ...apiclient.Option) Option {
	return func(c *Client) {
		c.api = apiclient.New("evolink", c.cfg.BaseURL, c.cfg.APIKey,
			append([]apiclient.Option{apiclient.WithTimeout(c.cfg.Timeout)}, opts...)...)
	}
}

// WithPollSleep overrides the wait between status checks.
func WithPollSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithLogger attaches a logger for task lifecycle debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs an Evolink client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 60
	}
	if strings.TrimSpace(cfg.Size) == "" {
		cfg.Size = "1024x1024"
	}
	client := &Client{
		cfg:    cfg,
		api:    apiclient.New("evolink", cfg.BaseURL, cfg.APIKey, apiclient.WithTimeout(cfg.Timeout)),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var _ pipeline.Illustrator = (*Client)(nil)

type generationRequest struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	N         int      `json:"n"`
	Size      string   `json:"size"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

type generationResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type taskResponse struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Results  []string `json:"results"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Illustrate creates a generation task and waits for its first result.
// referenceImage is forwarded as an image-to-image reference when it is a
// public URL.
func (c *Client) Illustrate(ctx context.Context, referenceImage, prompt, model string) (string, error) {
	req := generationRequest{Model: model, Prompt: prompt, N: 1, Size: c.cfg.Size}
	if ref := strings.TrimSpace(referenceImage); strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req.ImageURLs = []string{ref}
	}

	var created generationResponse
	if err := c.api.DoJSON(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   generationsPath,
		Body:   apiclient.JSONBody(req),
	}, &created); err != nil {
		return "", err
	}
	taskID := strings.TrimSpace(created.ID)
	if taskID == "" {
		if created.Error != nil && created.Error.Message != "" {
			return "", fmt.Errorf("create task: %s", created.Error.Message)
		}
		return "", errors.New("create task: response missing id")
	}
	c.logger.Debug("illustration task created", logging.String("task_id", taskID), logging.String("model", model))

	p := poller.Poller{
		Interval:    c.cfg.PollInterval,
		MaxAttempts: c.cfg.PollAttempts,
		Sleep:       c.sleep,
		OnState: func(state poller.State, attempt int) {
			c.logger.Debug("illustration task state",
				logging.String("task_id", taskID),
				logging.String("state", string(state)),
				logging.Int("attempt", attempt),
			)
		},
	}
	return poller.Poll(ctx, p, func(ctx context.Context, _ int) (poller.Status, string, error) {
		var task taskResponse
		if err := c.api.DoJSON(ctx, apiclient.Request{Path: tasksPath + "/" + taskID}, &task); err != nil {
			return poller.StatusRunning, "", err
		}
		switch strings.ToLower(task.Status) {
		case statusCompleted:
			if len(task.Results) == 0 || strings.TrimSpace(task.Results[0]) == "" {
				return poller.StatusFailed, "", errors.New("task completed without results")
			}
			return poller.StatusSucceeded, task.Results[0], nil
		case statusFailed:
			if task.Error != nil && task.Error.Message != "" {
				return poller.StatusFailed, "", errors.New(task.Error.Message)
			}
			return poller.StatusFailed, "", nil
		default:
			return poller.StatusRunning, "", nil
		}
	})
}
