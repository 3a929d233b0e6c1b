package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/config"
)

const userAgent = "reelforge/0.1.0"

// Service defines the notification surface used by the CLI, server and watcher.
type Service interface {
	NotifyRunCompleted(ctx context.Context, title string, images, fallbacks int) error
	NotifyRunFailed(ctx context.Context, title string, err error) error
	NotifyRecordingCompleted(ctx context.Context, title, path string, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		runComplete: cfg.Notifications.RunComplete,
		runFailed:   cfg.Notifications.RunFailed,
		recording:   cfg.Notifications.Recording,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	runComplete bool
	runFailed   bool
	recording   bool
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, title string, images, fallbacks int) error {
	if !n.runComplete {
		return nil
	}
	message := fmt.Sprintf("✅ Ready: %s\n%d images", strings.TrimSpace(title), images)
	if fallbacks > 0 {
		message = fmt.Sprintf("%s (%d using the character image)", message, fallbacks)
	}
	return n.send(ctx, payload{
		title:   "reelforge - Run Complete",
		message: message,
		tags:    []string{"reelforge", "run", "completed"},
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, title string, err error) error {
	if !n.runFailed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Failed")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(": ")
		builder.WriteString(title)
	}
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}
	return n.send(ctx, payload{
		title:    "reelforge - Run Failed",
		message:  builder.String(),
		tags:     []string{"reelforge", "run", "error"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyRecordingCompleted(ctx context.Context, title, path string, duration time.Duration) error {
	if !n.recording {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	message := fmt.Sprintf("🎞️ Recorded: %s (%s)", strings.TrimSpace(title), duration)
	if path = strings.TrimSpace(path); path != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, path)
	}
	return n.send(ctx, payload{
		title:   "reelforge - Recording Complete",
		message: message,
		tags:    []string{"reelforge", "recording", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "reelforge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"reelforge", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, string, int, int) error                    { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error                          { return nil }
func (noopService) NotifyRecordingCompleted(context.Context, string, string, time.Duration) error { return nil }
func (noopService) TestNotification(context.Context) error                                        { return nil }
