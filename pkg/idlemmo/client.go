package idlemmo

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"idledata/pkg/config"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/models"
	"idledata/pkg/ratelimit"
)

// Options configures a Client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	// Timeout of zero leaves requests unbounded.
	Timeout time.Duration
	// Pacer runs after every successful call. Nil means no pause.
	Pacer      ratelimit.Pacer
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client calls the IdleMMO public API. It never retries.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	apiKey     string
	pacer      ratelimit.Pacer
	logger     logger.Logger
}

// NewClient creates a client from explicit options
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		httpClient: httpClient,
		headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		pacer:   ratelimit.OrNoDelay(opts.Pacer),
		logger:  logger.OrGlobal(opts.Logger),
	}
}

// NewClientFromConfig creates a client paced by the configured call delay
func NewClientFromConfig(cfg *config.APIConfig, log logger.Logger) *Client {
	return NewClient(Options{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Pacer:     ratelimit.NewFixedDelay(cfg.CallDelay),
		Logger:    log,
	})
}

// WithAPIKey returns a copy of the client that authenticates with key.
// The copy shares the transport and the pacer.
func (c *Client) WithAPIKey(key string) *Client {
	clone := *c
	clone.apiKey = key
	return &clone
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending API request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("API request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, apperrors.Network("request "+req.URL.Path, err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, time.Since(start))
	return resp, nil
}

// Call performs an authenticated GET, decodes the JSON body into target
// and then pauses through the pacer. Non-2xx responses become HTTP-kind
// errors after the body has been logged.
func (c *Client) Call(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperrors.Network("build request", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network("read response body", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return apperrors.Parsing("decode "+req.URL.Path, err)
	}

	return c.pacer.Pause(ctx)
}

func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	status := statusText(resp)
	c.logger.ErrorWithFields("API error", map[string]interface{}{
		"status":      resp.StatusCode,
		"status_text": status,
		"url":         resp.Request.URL.String(),
		"body":        string(body),
	})
	return apperrors.HTTP(resp.StatusCode, status)
}

// statusText strips the numeric prefix off resp.Status ("404 Not Found" → "Not Found")
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// SearchItems fetches one page of the item search for query
func (c *Client) SearchItems(ctx context.Context, query string, page int) (*models.SearchPage, error) {
	var result models.SearchPage
	if err := c.Call(ctx, SearchURL(c.baseURL, query, page), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MarketHistory fetches the market history of one item for a tier and series
func (c *Client) MarketHistory(ctx context.Context, hashedID string, tier int, series models.Series) (*models.MarketHistory, error) {
	var result models.MarketHistory
	if err := c.Call(ctx, MarketHistoryURL(c.baseURL, hashedID, tier, series), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
