package archiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBaseURL   = "http://127.0.0.1:17665"
	defaultUserAgent = "goarchappl/0.1"
	defaultTimeout   = 30 * time.Second
)

// Options configure a client at construction time. The zero value uses the
// local appliance defaults. Options are copied by the constructors; mutating
// an Options value after construction has no effect on the client.
type Options struct {
	// URL is the appliance base URL (scheme+host[:port]). A bare host:port
	// defaults the scheme to http.
	URL string
	// Timeout bounds each request through the underlying http.Client.
	Timeout time.Duration
	// Logger receives debug-level request traces. Nil discards them.
	Logger *slog.Logger
}

// caller is the request plumbing shared by the data and management clients.
type caller struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	log       *slog.Logger
}

func newCaller(opts Options) (caller, error) {
	base, err := parseBaseURL(opts.URL)
	if err != nil {
		return caller{}, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return caller{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		log:       log,
	}, nil
}

// URL reports the normalized base URL the client targets.
func (c caller) URL() string { return c.baseURL.String() }

func (c caller) getJSON(ctx context.Context, rel *url.URL, dest any) error {
	return c.doJSON(ctx, http.MethodGet, rel, nil, dest)
}

func (c caller) postJSON(ctx context.Context, rel *url.URL, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, rel, payload, dest)
}

func (c caller) doJSON(ctx context.Context, method string, rel *url.URL, body []byte, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	c.log.Debug("appliance request",
		slog.String("method", method),
		slog.String("url", reqURL.Redacted()),
		slog.String("request_id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{url: rel.Path, status: resp.StatusCode}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
