// Package removebg removes image backgrounds through the remove.bg HTTP API.
package removebg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/assets"
	"reelforge/internal/config"
	"reelforge/internal/matting"
	"reelforge/internal/services/apiclient"
)

// Config captures the settings needed to reach remove.bg.
type Config struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// ConfigFrom extracts client settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		APIKey:  cfg.RemoveBG.APIKey,
		URL:     cfg.RemoveBG.URL,
		Timeout: time.Duration(cfg.RemoveBG.TimeoutSeconds) * time.Second,
	}
}

// Client implements matting.Provider. Results are written to the asset store.
type Client struct {
	cfg   Config
	api   *apiclient.Client
	store *assets.Store
}

// New constructs a remove.bg client that saves cut-outs into store.
func New(cfg Config, store *assets.Store, opts ...apiclient.Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	base := append([]apiclient.Option{
		apiclient.WithTimeout(cfg.Timeout),
		apiclient.WithAPIKeyHeader("X-Api-Key"),
	}, opts...)
	return &Client{
		cfg:   cfg,
		api:   apiclient.New("removebg", "", cfg.APIKey, base...),
		store: store,
	}
}

var _ matting.Provider = (*Client)(nil)

// Name identifies the provider in logs.
func (c *Client) Name() string { return "removebg" }

// RemoveBackground submits imageURL and stores the returned PNG. Public URLs
// are passed by reference; local and data references are uploaded.
func (c *Client) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.New("remove.bg api key not configured")
	}
	if c.store == nil {
		return "", errors.New("remove.bg asset store not configured")
	}

	var upload []byte
	if !assets.IsRemote(imageURL) {
		data, _, err := c.store.Fetch(ctx, imageURL)
		if err != nil {
			return "", err
		}
		upload = data
	}

	resp, err := c.api.Do(ctx, apiclient.Request{
		Method:  http.MethodPost,
		Path:    c.cfg.URL,
		Headers: map[string]string{"Accept": "image/png"},
		Body: func() (io.Reader, string, error) {
			return formBody(imageURL, upload)
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Body) == 0 {
		return "", errors.New("remove.bg returned an empty image")
	}
	return c.store.Save(resp.Body, resp.Header.Get("Content-Type"))
}

func formBody(imageURL string, upload []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if upload != nil {
		part, err := writer.CreateFormFile("image_file", "image")
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(upload); err != nil {
			return nil, "", err
		}
	} else if err := writer.WriteField("image_url", imageURL); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("size", "auto"); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
