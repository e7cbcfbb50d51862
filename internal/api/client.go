package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/buildagent/buildagent/internal/config"
	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/logging"
	"github.com/buildagent/buildagent/internal/util"
)

const (
	// defaultBaseURL is where the workflow backend listens in development.
	defaultBaseURL = "http://localhost:8000"

	// defaultTimeout bounds a single request including body transfer.
	defaultTimeout = 30 * time.Second

	// maxDetailLength caps backend error detail carried into errors.
	maxDetailLength = 200
)

// Client talks to the workflow backend's REST API.
//
// Outbound requests pass through an optional token-bucket limiter. Concurrent
// identical GET requests share one round trip.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
	group      singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit limits outbound requests to rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.WithComponent("api")
		}
	}
}

// NewClient creates a Client for the backend at baseURL. An empty baseURL
// uses the development default.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig creates a Client from the api config section.
func NewClientFromConfig(cfg config.APIConfig, logger *logging.Logger) *Client {
	return NewClient(cfg.BaseURL,
		WithTimeout(cfg.Timeout),
		WithRateLimit(cfg.RateLimit, cfg.Burst),
		WithLogger(logger),
	)
}

// BaseURL returns the backend root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errorBody is the backend's error envelope. detail is a string for
// application errors and a list of objects for request validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// get performs a GET and decodes the response into out. Concurrent calls for
// the same path and query share one request.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	key := path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.roundTrip(ctx, op, http.MethodGet, path, query, nil)
	})
	if err != nil {
		return err
	}
	return c.decode(op, http.MethodGet, path, v.([]byte), out)
}

// send performs a request with an optional JSON body and decodes the
// response into out when out is non-nil.
func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	data, err := c.roundTrip(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(op, method, path, data, out)
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.NewTransportError(op, method, path, err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.NewValidationError("failed to encode request body").WithCause(err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.NewTransportError(op, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, errors.NewTransportError(op, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(op, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := errors.NewAPIError(op, method, path, resp.StatusCode)
		if detail := errorDetail(data); detail != "" {
			apiErr = apiErr.WithDetail(detail)
		}
		c.logger.Debug("request rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"detail", apiErr.Detail,
		)
		return nil, apiErr
	}
	return data, nil
}

func (c *Client) decode(op, method, path string, data []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewAPIError(op, method, path, http.StatusOK).
			WithCause(errors.Join(errors.ErrUnexpectedResponse, err))
	}
	return nil
}

// errorDetail extracts a readable message from an error response body.
func errorDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return util.TruncateString(strings.TrimSpace(string(data)), maxDetailLength)
	}
	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return util.TruncateString(text, maxDetailLength)
	}
	return util.TruncateString(string(body.Detail), maxDetailLength)
}

func projectQuery(projectID int) url.Values {
	return url.Values{"project_id": []string{strconv.Itoa(projectID)}}
}
