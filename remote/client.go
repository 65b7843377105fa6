package remote

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
	"strconv"
	"strings"
	"time"

	"github.com/nevindra/jcl"
)

// Client talks to the /run, /transpile and /runs endpoints of a jclserver.
type Client struct {
	baseURL string
	cfg     clientConfig
	client  *http.Client
}

// New returns a Client for the server at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     cfg,
		client:  hc,
	}
}

// transpileResponse is the body of POST /transpile.
type transpileResponse struct {
	OK             bool   `json:"ok"`
	TranspiledCode string `json:"transpiled_code,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Run submits req and returns the server's outcome. Only the wire fields of
// the Outcome (ok, stage, stdout, stderr) are populated.
func (c *Client) Run(ctx context.Context, req jcl.RunRequest) (jcl.Outcome, error) {
	var out jcl.Outcome
	if err := c.call(ctx, http.MethodPost, "/run", req, &out); err != nil {
		return jcl.Outcome{}, fmt.Errorf("remote run: %w", err)
	}
	return out, nil
}

// Transpile converts code on the server. A conversion fault reported by the
// server is returned as *jcl.TranspileError.
func (c *Client) Transpile(ctx context.Context, code string) (string, error) {
	var resp transpileResponse
	if err := c.call(ctx, http.MethodPost, "/transpile", jcl.RunRequest{Code: code}, &resp); err != nil {
		return "", fmt.Errorf("remote transpile: %w", err)
	}
	if !resp.OK {
		return "", &jcl.TranspileError{Reason: resp.Error}
	}
	return resp.TranspiledCode, nil
}

// Runs lists up to limit recorded runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]jcl.RunRecord, error) {
	path := "/runs"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var recs []jcl.RunRecord
	if err := c.call(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, fmt.Errorf("remote runs: %w", err)
	}
	return recs, nil
}

// GetRun fetches one recorded run. A 404 maps to jcl.ErrNotFound.
func (c *Client) GetRun(ctx context.Context, id string) (jcl.RunRecord, error) {
	var rec jcl.RunRecord
	err := c.call(ctx, http.MethodGet, "/runs/"+url.PathEscape(id), nil, &rec)
	if err != nil {
		var herr *jcl.ErrHTTP
		if errors.As(err, &herr) && herr.Status == http.StatusNotFound {
			return jcl.RunRecord{}, fmt.Errorf("remote run %s: %w", id, jcl.ErrNotFound)
		}
		return jcl.RunRecord{}, fmt.Errorf("remote run %s: %w", id, err)
	}
	return rec, nil
}

// call performs one request with retry. Only transport errors and 503
// (server busy, request not accepted) are retried.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	var lastErr error
	delay := c.cfg.retryDelay
	for attempt := 0; attempt < c.cfg.maxRetries; attempt++ {
		if attempt > 0 {
			c.cfg.logger.Debug("remote: retrying", "path", path, "attempt", attempt+1, "error", lastErr)
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if !isTransient(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("server unavailable after %d attempts: %w", c.cfg.maxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.maxResponse))
	if err != nil {
		return &transportError{err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &jcl.ErrHTTP{Status: resp.StatusCode, Body: errorMessage(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// transportError marks failures where no response was received.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var terr *transportError
	if errors.As(err, &terr) {
		return !errors.Is(err, context.Canceled)
	}
	var herr *jcl.ErrHTTP
	return errors.As(err, &herr) && herr.Status == http.StatusServiceUnavailable
}

// errorMessage extracts the "error" field of a JSON error body, falling back
// to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
