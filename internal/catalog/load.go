package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultTimeout bounds a single catalog fetch.
const DefaultTimeout = 10 * time.Second

// maxDocumentSize caps how much of a remote document is read.
const maxDocumentSize = 16 << 20

// Loader fetches catalog documents from files or http(s) URLs.
type Loader struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewLoader creates a Loader using http.DefaultClient.
func NewLoader(timeout time.Duration) *Loader {
	return &Loader{Client: http.DefaultClient, Timeout: timeout}
}

// Load reads a catalog with a default Loader.
func Load(ctx context.Context, source string) (*Catalog, error) {
	return NewLoader(DefaultTimeout).Load(ctx, source)
}

// Load reads and validates the catalog at source.
// source is a local path, a file:// URL or an http(s) URL.
func (l *Loader) Load(ctx context.Context, source string) (*Catalog, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty source", ErrUnsupportedSource)
	}

	var (
		data   []byte
		format Format
		err    error
	)
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		data, format, err = l.fetch(ctx, source)
	case strings.HasPrefix(source, "file://"):
		path := strings.TrimPrefix(source, "file://")
		data, err = readFile(path)
		format = FormatFromPath(path)
	case strings.Contains(source, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	default:
		data, err = readFile(source)
		format = FormatFromPath(source)
	}
	if err != nil {
		return nil, err
	}

	cat, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return cat, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return data, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, Format, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	reqCtx := ctx
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid catalog URL %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("failed to fetch catalog %s: unexpected status %s", rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read catalog response: %w", err)
	}
	return data, responseFormat(resp.Header.Get("Content-Type"), rawURL), nil
}

// responseFormat prefers the declared content type and falls back to the URL path.
func responseFormat(contentType, rawURL string) Format {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if strings.Contains(mediaType, "yaml") {
			return FormatYAML
		}
		if strings.Contains(mediaType, "json") {
			return FormatJSON
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		return FormatFromPath(u.Path)
	}
	return FormatJSON
}
