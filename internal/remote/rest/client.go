// Package rest talks to the mock REST API that mirrors the transaction
// collection: GET ?page&limit, POST, DELETE /{id}.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneytrack/internal/core"
	"moneytrack/internal/remote"
)

// DefaultBaseURL is the public mock endpoint the mobile client used.
const DefaultBaseURL = "https://67135de66c5f5ced66262fd3.mockapi.io/money"

// maxBodyBytes caps how much of a response is read; receipts can be large data URLs.
const maxBodyBytes = 16 << 20

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

var _ remote.Client = (*Client)(nil)

// Options configures a Client. Zero values get defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClientWithPooling(opts.Timeout)
	}
	return &Client{baseURL: u, http: hc}, nil
}

// newHTTPClientWithPooling keeps a small pool of keep-alive connections to
// the single upstream host.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) Name() string { return "rest" }

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) List(ctx context.Context, page, limit int) ([]core.Transaction, error) {
	u := *c.baseURL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var out []core.Transaction
	status, err := c.do(ctx, http.MethodGet, u.String(), nil, &out)
	if err != nil {
		// mockapi answers 404 for a page past the end
		if status == http.StatusNotFound {
			return []core.Transaction{}, nil
		}
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("encode transaction: %w", err)
	}

	var created core.Transaction
	if _, err := c.do(ctx, http.MethodPost, c.baseURL.String(), body, &created); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	if created.ID == 0 {
		created.ID = tx.ID
	}
	created.IsSynced = true

	slog.DebugContext(ctx, "Transaction created remotely", "id", created.ID, "remote", c.Name())
	return created, nil
}

func (c *Client) Delete(ctx context.Context, id core.ID) error {
	u := c.baseURL.JoinPath(id.String())
	status, err := c.do(ctx, http.MethodDelete, u.String(), nil, nil)
	if status == http.StatusNotFound {
		return fmt.Errorf("delete transaction %s: %w", id, remote.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// do sends one request and decodes a 2xx JSON body into out when out is non-nil.
// The status code is returned even on error so callers can special-case it.
func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Remote request completed",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%w: %d %s", remote.ErrUnexpectedCode, resp.StatusCode, snippet(data))
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
