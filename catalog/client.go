package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/advisor/retry"
	"golang.org/x/time/rate"
)

// SearchRequest selects one page of one partition.
type SearchRequest struct {
	Partition string
	Page      int
}

// Client talks to a Vega catalog API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.http = hc
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "catalog")
		return nil
	}
}

// NewClient creates a catalog client. Zero-valued settings in cfg fall back
// to DefaultConfig.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.applyDefaults()

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  slog.Default().With("component", "catalog"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Search fetches one page of format groups.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	body, err := json.Marshal(buildSearchPayload(c.cfg, req))
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/search-result/search/format-groups", body, &resp); err != nil {
		return nil, fmt.Errorf("search %s page %d: %w", req.Partition, req.Page, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: search %s page %d: missing data", ErrMalformedResponse, req.Partition, req.Page)
	}
	return resp.page(), nil
}

// Edition fetches edition metadata.
// Returns ErrEditionNotFound if the catalog has no such edition.
func (c *Client) Edition(ctx context.Context, id string) (*Edition, error) {
	var resp editionResponse
	err := c.do(ctx, http.MethodGet, "/search-result/editions/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrEditionNotFound, id)
		}
		return nil, fmt.Errorf("edition %s: %w", id, err)
	}
	return processEdition(resp.Edition), nil
}

func isRetryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do sends one request with retries and decodes a 200 response into out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint := c.cfg.BaseURL + path

	return retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return retry.Permanent(err)
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			c.logger.Warn("catalog request failed", "method", method, "path", path, "err", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Permanent(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
			}
			return nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if !isRetryable(resp.StatusCode) {
			return retry.Permanent(statusErr)
		}

		c.logger.Warn("retryable catalog response", "method", method, "path", path, "status", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
				return retry.After(statusErr, time.Duration(secs)*time.Second)
			}
		}
		return statusErr
	}, c.cfg.MaxAttempts, c.cfg.BaseDelay)
}

func (c *Client) setHeaders(req *http.Request) {
	domain := c.cfg.CustomerDomain
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-version", "2")
	req.Header.Set("iii-customer-domain", domain)
	req.Header.Set("iii-host-domain", domain)
	req.Header.Set("Origin", "https://"+domain)
	req.Header.Set("Referer", "https://"+domain+"/")
}
