// Package api wraps the assistant backend's JSON-over-HTTP endpoints.
//
// Every method issues exactly one request. Nothing is retried, cached or
// de-duplicated: two identical concurrent calls make two round trips.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// BaseURLEnv names the environment variable holding the backend URL.
	BaseURLEnv = "FA_API_URL"

	DefaultBaseURL = "http://localhost:8000"
)

// BaseURLFromEnv returns $FA_API_URL, or the localhost default.
func BaseURLFromEnv() string {
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		return v
	}
	return DefaultBaseURL
}

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	logger    Logger
	userAgent string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTransport wraps the current transport, e.g. for instrumentation.
func WithTransport(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(c *Client) {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *c.http
		hc.Transport = wrap(base)
		c.http = &hc
	}
}

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New returns a Client for baseURL, which must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		logger:  NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeBaseURL validates raw and strips any trailing slash.
func NormalizeBaseURL(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, fmt.Errorf("base URL is empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("base URL must include http or https scheme")
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base URL must include host")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) SendMessage(ctx context.Context, message string) (*ChatResponse, error) {
	var out ChatResponse
	err := c.do(ctx, "send message", http.MethodPost, "/chat", nil, ChatRequest{Message: message}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns up to limit messages older than before, newest first.
// An empty before starts from the latest message.
func (c *Client) History(ctx context.Context, limit int, before string) (*HistoryResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}
	var out HistoryResponse
	if err := c.do(ctx, "fetch history", http.MethodGet, "/chat/history", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Traces lists traces, optionally restricted to one session.
func (c *Client) Traces(ctx context.Context, limit, offset int, sessionID string) (*TracesResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	var out TracesResponse
	if err := c.do(ctx, "fetch traces", http.MethodGet, "/admin/traces", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RateTrace attaches a 1-5 score and optional note to a trace. An empty
// note is sent as null.
func (c *Client) RateTrace(ctx context.Context, traceID string, score int, note string) (*RateResponse, error) {
	req := RateRequest{Score: score}
	if note != "" {
		req.Note = &note
	}
	path := "/admin/traces/" + url.PathEscape(traceID) + "/rate"
	var out RateResponse
	if err := c.do(ctx, "rate trace", http.MethodPatch, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession ends the active session (if any) and starts a new one.
func (c *Client) CreateSession(ctx context.Context, note string) (*SessionResponse, error) {
	req := SessionRequest{}
	if note != "" {
		req.Note = &note
	}
	var out SessionResponse
	if err := c.do(ctx, "create session", http.MethodPost, "/admin/sessions", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Sessions(ctx context.Context) (*SessionsResponse, error) {
	var out SessionsResponse
	if err := c.do(ctx, "fetch sessions", http.MethodGet, "/admin/sessions", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminMessages(ctx context.Context, query AdminMessageQuery) (*AdminMessagesResponse, error) {
	q := url.Values{}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.Role != "" {
		q.Set("role", query.Role)
	}
	if query.Query != "" {
		q.Set("q", query.Query)
	}
	var out AdminMessagesResponse
	if err := c.do(ctx, "fetch messages", http.MethodGet, "/admin/messages", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MessageStats(ctx context.Context) (*MessageStats, error) {
	var out MessageStats
	if err := c.do(ctx, "fetch message stats", http.MethodGet, "/admin/stats/messages", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PerformanceStats(ctx context.Context) (*PerformanceStats, error) {
	var out PerformanceStats
	if err := c.do(ctx, "fetch performance stats", http.MethodGet, "/admin/stats/performance", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BenchRuns(ctx context.Context, limit, offset int) (*BenchRunsResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out BenchRunsResponse
	if err := c.do(ctx, "fetch bench runs", http.MethodGet, "/admin/bench/runs", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BenchSummary(ctx context.Context) (*BenchSummaryResponse, error) {
	var out BenchSummaryResponse
	if err := c.do(ctx, "fetch bench summary", http.MethodGet, "/admin/bench/summary", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BenchRun(ctx context.Context, runID string) (*BenchRunDetail, error) {
	var out BenchRunDetail
	path := "/admin/bench/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, "fetch bench run", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ArchiveMessages moves every live chat message into the backend archive.
func (c *Client) ArchiveMessages(ctx context.Context) (*ArchiveResponse, error) {
	var out ArchiveResponse
	if err := c.do(ctx, "archive messages", http.MethodPost, "/admin/archive", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &RequestError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	rt := RoundTrip{Op: op, Start: time.Now(), Method: method, Path: path}
	resp, err := c.http.Do(req)
	rt.Duration = time.Since(rt.Start)
	if err != nil {
		rt.Err = err
		c.logger.LogRoundTrip(rt)
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	rt.Status = resp.StatusCode
	c.logger.LogRoundTrip(rt)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &RequestError{Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
