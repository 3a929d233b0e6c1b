package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/fileutil"
)

const (
	defaultFetchTimeout = 60 * time.Second
	maxFetchBytes       = 256 << 20
)

// Store saves media under a directory and fetches references.
type Store struct {
	dir        string
	httpClient *http.Client
}

// Option customizes a Store.
type Option func(*Store)

// WithHTTPClient overrides the client used for http(s) references.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:        dir,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Fetch returns the bytes and content type behind ref.
func (s *Store) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	ref = strings.TrimSpace(ref)
	switch kindOf(ref) {
	case kindEmpty:
		return nil, "", errors.New("fetch asset: empty reference")
	case kindData:
		return decodeDataURL(ref)
	case kindHTTP:
		return s.fetchHTTP(ctx, ref)
	default:
		path, err := LocalPath(ref)
		if err != nil {
			return nil, "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("fetch asset: %w", err)
		}
		return data, contentTypeFor(path, data), nil
	}
}

// Save writes data under a new uuid name and returns a file:// reference.
func (s *Store) Save(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("save asset: empty payload")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	path := filepath.Join(s.dir, uuid.NewString()+extensionFor(contentType))
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save asset: %w", err)
	}
	return FileRef(path), nil
}

// NewPath reserves a fresh path in the store for tools that write their own
// output, such as the local matting command.
func (s *Store) NewPath(ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset directory: %w", err)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.dir, uuid.NewString()+ext), nil
}

// Localize returns a filesystem path for ref, downloading or decoding it into
// the store when it is not already a local file.
func (s *Store) Localize(ctx context.Context, ref string) (string, error) {
	if k := kindOf(ref); k == kindFile || k == kindPath {
		return LocalPath(ref)
	}
	data, contentType, err := s.Fetch(ctx, ref)
	if err != nil {
		return "", err
	}
	saved, err := s.Save(data, contentType)
	if err != nil {
		return "", err
	}
	return LocalPath(saved)
}

func (s *Store) fetchHTTP(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch asset: new request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("fetch asset: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("fetch asset: read body: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, "", fmt.Errorf("fetch asset: body exceeds %d bytes", maxFetchBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	} else {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

type refKind int

const (
	kindEmpty refKind = iota
	kindHTTP
	kindData
	kindFile
	kindPath
)

func kindOf(ref string) refKind {
	lower := strings.ToLower(strings.TrimSpace(ref))
	switch {
	case lower == "":
		return kindEmpty
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return kindHTTP
	case strings.HasPrefix(lower, "data:"):
		return kindData
	case strings.HasPrefix(lower, "file://"):
		return kindFile
	default:
		return kindPath
	}
}

// IsRemote reports whether ref must be fetched over the network.
func IsRemote(ref string) bool {
	return kindOf(ref) == kindHTTP
}

// FileRef converts an absolute path into a file:// reference.
func FileRef(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// LocalPath resolves a file:// reference or plain path to a filesystem path.
func LocalPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch kindOf(ref) {
	case kindFile:
		parsed, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("parse file reference: %w", err)
		}
		return filepath.FromSlash(parsed.Path), nil
	case kindPath:
		return ref, nil
	default:
		return "", fmt.Errorf("reference %q is not a local file", truncate(ref, 64))
	}
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func decodeDataURL(ref string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(ref[len("data:"):], ",")
	if !ok {
		return nil, "", errors.New("fetch asset: malformed data URL")
	}
	contentType := "text/plain"
	isBase64 := false
	for i, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		switch {
		case i == 0 && part != "":
			contentType = strings.ToLower(part)
		case strings.EqualFold(part, "base64"):
			isBase64 = true
		}
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("fetch asset: decode data URL: %w", err)
		}
		return data, contentType, nil
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("fetch asset: unescape data URL: %w", err)
	}
	return []byte(unescaped), contentType, nil
}

func contentTypeFor(path string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return http.DetectContentType(data)
}

var preferredExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"audio/wave": ".wav",
	"audio/ogg":  ".ogg",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
	"text/plain": ".txt",
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func truncate(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n] + "..."
}

// ReadAllLimited is used by provider clients that stream binary responses
// into the store.
func ReadAllLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxFetchBytes+1))
	if err != nil {
		return nil, err
	}
	if n > maxFetchBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", maxFetchBytes)
	}
	return buf.Bytes(), nil
}
