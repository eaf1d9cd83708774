// Package textextract implements domain.TextExtractor against Apache Tika.
// It only speaks the Tika HTTP protocol and sanitises the returned plain
// text; parsing PDF/DOCX structure stays inside Tika.
package textextract

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/pkg/textx"
)

// Client is a minimal Apache Tika HTTP client implementing
// domain.TextExtractor: PUT /tika with Accept: text/plain.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client against baseURL (e.g. http://localhost:9998) with the
// given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ExtractPath reads the file at path and submits it to Tika, returning
// sanitised, whitespace-collapsed plain text.
func (c *Client) ExtractPath(ctx domain.Context, fileName, path string) (string, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("op=textextract.Client.ExtractPath: read %s: %w", path, err)
	}

	u := c.baseURL
	if u == "" {
		u = "http://localhost:9998"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u+"/tika", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("op=textextract.Client.ExtractPath: build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	if ct := contentType(fileName, raw); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.UpstreamTransientError{Op: "tika.extract", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=textextract.Client.ExtractPath: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", &domain.UpstreamTransientError{Op: "tika.extract", Err: fmt.Errorf("tika status %d", resp.StatusCode)}
		}
		return "", fmt.Errorf("op=textextract.Client.ExtractPath: tika status %d", resp.StatusCode)
	}

	sanitized := textx.SanitizeText(string(body))
	return strings.Join(strings.Fields(sanitized), " "), nil
}

// contentType sniffs the file's MIME type from its content, falling back to
// extension when sniffing is inconclusive.
func contentType(fileName string, raw []byte) string {
	if mt := mimetype.Detect(raw); mt != nil && mt.String() != "" && mt.String() != "application/octet-stream" {
		return mt.String()
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain"
	default:
		return ""
	}
}

var _ domain.TextExtractor = (*Client)(nil)
