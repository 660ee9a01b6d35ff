package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"micromanagerr/internal/logging"
	"micromanagerr/internal/services"
)

// Kind selects the remote application.
type Kind string

const (
	Sonarr Kind = "sonarr"
	Radarr Kind = "radarr"
)

// ParseKind validates an application name.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case Sonarr:
		return Sonarr, nil
	case Radarr:
		return Radarr, nil
	default:
		return "", fmt.Errorf("unknown app %q (want sonarr or radarr)", value)
	}
}

// resource is the API resource holding the application's library items.
func (k Kind) resource() string {
	if k == Sonarr {
		return "series"
	}
	return "movie"
}

// editorIDsField is the bulk editor field carrying item ids.
func (k Kind) editorIDsField() string {
	if k == Sonarr {
		return "seriesIds"
	}
	return "movieIds"
}

// HTTPDoer describes the HTTP client used to reach Sonarr/Radarr.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultTimeout = 30 * time.Second

// Client talks to one Sonarr or Radarr instance over the v3 API.
type Client struct {
	kind    Kind
	baseURL string
	apiKey  string
	http    HTTPDoer
	timeout time.Duration
	logger  *slog.Logger
	creates singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a client for the given instance.
func New(kind Kind, baseURL, apiKey string, opts ...Option) (*Client, error) {
	if kind != Sonarr && kind != Radarr {
		return nil, fmt.Errorf("unknown app %q", kind)
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s url required", kind)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key required", kind)
	}
	c := &Client{
		kind:    kind,
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	c.logger = logging.NewComponentLogger(c.logger, string(kind))
	return c, nil
}

// Kind reports which application the client targets.
func (c *Client) Kind() Kind { return c.kind }

// do issues one API request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded response.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", c.kind, op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v3/"+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", c.kind, op, err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &UnavailableError{App: c.kind, Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("arr request",
		logging.String("op", op),
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode >= http.StatusInternalServerError {
		return &UnavailableError{App: c.kind, Op: op, Status: resp.StatusCode}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{App: c.kind, Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.Wrap(services.ErrTransient, string(c.kind), op, "decode response", err)
	}
	return nil
}
