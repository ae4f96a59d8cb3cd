package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMassiveBaseURL = "https://api.massive.com"
	maxBackoff            = 60 * time.Second
)

// APIError is a non-retryable HTTP response from the Massive REST API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

// MassiveOptions configures MassiveProvider. Zero values fall back to the documented defaults.
type MassiveOptions struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffJitter time.Duration
	Timespan      string
}

// MassiveProvider reads aggregates from the Massive (Polygon-compatible) REST API.
// 429 and 5xx responses are retried with exponential backoff and jitter.
type MassiveProvider struct {
	opts       MassiveOptions
	httpClient *http.Client
	logger     *zap.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
}

func NewMassiveProvider(httpClient *http.Client, opts MassiveOptions, logger *zap.Logger) *MassiveProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultMassiveBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 600 * time.Millisecond
	}
	if opts.Timespan == "" {
		opts.Timespan = "day"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MassiveProvider{
		opts:       opts,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
		jitter:     uniformJitter,
	}
}

type aggsResponse struct {
	Status  string   `json:"status"`
	Results []aggBar `json:"results"`
}

type aggBar struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

func (p *MassiveProvider) FetchBars(ctx context.Context, symbol string, limit int) ([]Bar, error) {
	if limit <= 0 {
		return nil, nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	to := p.now().UTC()
	from := to.AddDate(0, 0, -(limit*2 + 10))
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/%s/%s/%s",
		url.PathEscape(symbol), p.opts.Timespan, from.Format("2006-01-02"), to.Format("2006-01-02"))
	query := url.Values{}
	query.Set("adjusted", "true")
	query.Set("sort", "asc")
	query.Set("limit", "50000")

	var payload aggsResponse
	if err := p.requestJSON(ctx, symbol, path, query, &payload); err != nil {
		return nil, err
	}
	out := make([]Bar, 0, len(payload.Results))
	for _, r := range payload.Results {
		out = append(out, Bar{
			Timestamp: time.UnixMilli(r.T).UTC(),
			Open:      r.O,
			High:      r.H,
			Low:       r.L,
			Close:     r.C,
			Volume:    r.V,
		})
	}
	return lastN(out, limit), nil
}

func (p *MassiveProvider) requestJSON(ctx context.Context, symbol, path string, query url.Values, out any) error {
	fullURL := p.opts.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		attempts++
		status, header, body, err := p.get(ctx, fullURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return &FetchError{Provider: "massive", Symbol: symbol, Attempts: attempts, Err: ctxErr}
			}
			lastErr = err
			if err := p.pause(ctx, attempt, p.backoff(attempt)); err != nil {
				return &FetchError{Provider: "massive", Symbol: symbol, Attempts: attempts, Err: err}
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			if err := json.Unmarshal(body, out); err != nil {
				return &FetchError{Provider: "massive", Symbol: symbol, Attempts: attempts, Err: fmt.Errorf("decode response: %w", err)}
			}
			return nil
		case status == http.StatusTooManyRequests:
			delay, ok := retryAfter(header.Get("Retry-After"))
			if !ok {
				delay = p.backoff(attempt)
			}
			lastErr = &APIError{Status: status, Body: string(body)}
			p.logger.Debug("massive rate limited", zap.String("symbol", symbol), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			if err := p.pause(ctx, attempt, delay); err != nil {
				return &FetchError{Provider: "massive", Symbol: symbol, Attempts: attempts, Err: err}
			}
		case retryableStatus(status):
			lastErr = &APIError{Status: status, Body: string(body)}
			delay := p.backoff(attempt)
			p.logger.Debug("massive server error", zap.String("symbol", symbol), zap.Int("status", status), zap.Duration("delay", delay))
			if err := p.pause(ctx, attempt, delay); err != nil {
				return &FetchError{Provider: "massive", Symbol: symbol, Attempts: attempts, Err: err}
			}
		default:
			return &FetchError{Provider: "massive", Symbol: symbol, Attempts: attempts, Err: &APIError{Status: status, Body: string(body)}}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("retries exhausted")
	}
	return &FetchError{Provider: "massive", Symbol: symbol, Attempts: attempts, Err: fmt.Errorf("retries exhausted: %w", lastErr)}
}

func (p *MassiveProvider) get(ctx context.Context, fullURL string) (int, http.Header, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// pause waits before the next attempt; after the last attempt there is none.
func (p *MassiveProvider) pause(ctx context.Context, attempt int, d time.Duration) error {
	if attempt >= p.opts.MaxRetries {
		return nil
	}
	return p.sleep(ctx, d)
}

// backoff returns base*2^attempt plus jitter, capped at maxBackoff.
func (p *MassiveProvider) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := maxBackoff
	if attempt <= 30 {
		if exp := p.opts.BackoffBase * time.Duration(1<<attempt); exp > 0 && exp < maxBackoff {
			d = exp
		}
	}
	if p.opts.BackoffJitter > 0 {
		d += p.jitter(p.opts.BackoffJitter)
	}
	return d
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, false
	}
	if secs > maxBackoff.Seconds() {
		return maxBackoff, true
	}
	return time.Duration(secs * float64(time.Second)), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}
