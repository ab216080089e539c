package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/singleflight"

	"github.com/voyagen/matrixiptv/internal/models"
)

const (
	// DefaultTimeout bounds a single fetch when the caller configures none.
	DefaultTimeout = 30 * time.Second
	// MaxBodyBytes caps a fetched document, measured after content decoding.
	MaxBodyBytes = 256 << 20
)

// Client retrieves playlist and guide documents over HTTP.
type Client struct {
	userAgent  string
	httpClient *http.Client
	maxBytes   int64
	epgGroup   singleflight.Group
}

// NewClient creates a Client. userAgent is optional; timeout <= 0 uses DefaultTimeout.
func NewClient(userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   MaxBodyBytes,
	}
}

// FetchText GETs url and returns the decoded body. Network errors and non-2xx
// responses wrap ErrFetchFailure.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: new request: %v", ErrFetchFailure, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := c.decodeBody(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	return string(body), nil
}

// decodeBody reads resp.Body, undoing gzip or brotli content encoding. Both
// the wire body and the decoded document are capped at the client limit.
func (c *Client) decodeBody(resp *http.Response) ([]byte, error) {
	raw, err := readLimited(resp.Body, c.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		return readLimited(zr, c.maxBytes)
	case "br":
		return readLimited(brotli.NewReader(bytes.NewReader(raw)), c.maxBytes)
	default:
		return raw, nil
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("document exceeds %d bytes", limit)
	}
	return data, nil
}

// FetchEPG fetches and indexes the XMLTV guide at url. Concurrent calls for
// the same url share one request.
func (c *Client) FetchEPG(ctx context.Context, url string) (models.EPGIndex, error) {
	v, err, _ := c.epgGroup.Do(url, func() (any, error) {
		text, err := c.FetchText(ctx, url)
		if err != nil {
			return nil, err
		}
		return IndexProgramsString(text)
	})
	if err != nil {
		return nil, err
	}
	return v.(models.EPGIndex), nil
}

// ReadFile reads a local playlist file.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read playlist file: %w", err)
	}
	return string(data), nil
}
