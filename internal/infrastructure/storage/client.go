// Package storage talks to the external object store over its folder
// style HTTP API. Objects are addressed by path; the service exposes
// upload, server-side move, delete and delete-by-prefix.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/icctweb/team-registration/internal/platform/resilience"
)

type ClientConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	logger         *slog.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:          strings.TrimSpace(cfg.Token),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) Upload(ctx context.Context, path string, content []byte) (string, error) {
	objectURL := c.objectURL(path)
	err := c.call(ctx, http.MethodPut, objectURL, "application/octet-stream", bytes.NewReader(content), nil)
	if err != nil {
		return "", crerr.Wrapf(err, "upload %s", path)
	}
	return objectURL, nil
}

func (c *Client) Move(ctx context.Context, src, dst string) (string, error) {
	body, err := sonic.Marshal(moveRequest{Source: src, Destination: dst})
	if err != nil {
		return "", crerr.Wrap(err, "marshal move request")
	}

	err = c.call(ctx, http.MethodPost, c.baseURL+"/v1/objects/move", "application/json", bytes.NewReader(body), nil)
	if err != nil {
		// A retried move may find the source already gone. When the
		// destination exists the previous attempt finished the job.
		if isNotFoundErr(err) {
			if c.exists(ctx, dst) {
				return c.objectURL(dst), nil
			}
			return "", crerr.Wrapf(ErrObjectNotFound, "move %s to %s", src, dst)
		}
		return "", crerr.Wrapf(err, "move %s to %s", src, dst)
	}
	return c.objectURL(dst), nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	err := c.call(ctx, http.MethodDelete, c.objectURL(path), "", nil, nil)
	if err != nil {
		if isNotFoundErr(err) {
			return nil
		}
		return crerr.Wrapf(err, "delete %s", path)
	}
	return nil
}

func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) error {
	body, err := sonic.Marshal(deletePrefixRequest{Prefix: prefix})
	if err != nil {
		return crerr.Wrap(err, "marshal delete-prefix request")
	}

	err = c.call(ctx, http.MethodPost, c.baseURL+"/v1/objects/delete-prefix", "application/json", bytes.NewReader(body), nil)
	if err != nil {
		if isNotFoundErr(err) {
			return nil
		}
		return crerr.Wrapf(err, "delete prefix %s", prefix)
	}
	return nil
}

func (c *Client) exists(ctx context.Context, path string) bool {
	err := c.call(ctx, http.MethodHead, c.objectURL(path), "", nil, nil)
	return err == nil
}

func (c *Client) call(ctx context.Context, method, callURL, contentType string, body io.Reader, out any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "object store circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("object store is temporarily unavailable: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, callURL, body)
	if err != nil {
		return crerr.Wrap(err, "create object store request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		callErr := resilience.MarkTransient(fmt.Errorf("object store request %s %s: %w", method, callURL, err))
		c.recordCircuitResult(callErr)
		return callErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		callErr := statusError{
			status: resp.StatusCode,
			body:   strings.TrimSpace(string(raw)),
		}
		if isRetryableStatus(resp.StatusCode) {
			marked := resilience.MarkTransient(callErr)
			c.recordCircuitResult(marked)
			return marked
		}
		// Client-side failures do not count against the breaker.
		c.recordCircuitResult(nil)
		return callErr
	}

	if out != nil {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			c.recordCircuitResult(err)
			return resilience.MarkTransient(crerr.Wrap(err, "read object store response"))
		}
		if err := sonic.Unmarshal(raw, out); err != nil {
			c.recordCircuitResult(nil)
			return crerr.Wrap(err, "unmarshal object store response")
		}
	}

	c.recordCircuitResult(nil)
	return nil
}

func (c *Client) recordCircuitResult(err error) {
	if !c.circuitEnabled {
		return
	}
	if err != nil {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

func (c *Client) objectURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return c.baseURL + "/v1/objects/" + strings.Join(segments, "/")
}

type moveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type deletePrefixRequest struct {
	Prefix string `json:"prefix"`
}

// ErrObjectNotFound reports a missing source object on a move whose
// destination does not exist either.
var ErrObjectNotFound = crerr.New("object not found")

type statusError struct {
	status int
	body   string
}

func (e statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("object store responded with status %d", e.status)
	}
	return fmt.Sprintf("object store responded with status %d: %s", e.status, e.body)
}

func isNotFoundErr(err error) bool {
	var se statusError
	return crerr.As(err, &se) && se.status == http.StatusNotFound
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status/100 == 5
}
