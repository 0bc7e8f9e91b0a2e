// Package mailer delivers registration emails through the transactional
// mail provider's HTTP API.
package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/icctweb/team-registration/internal/platform/resilience"
)

type ClientConfig struct {
	BaseURL        string
	Token          string
	FromAddress    string
	FromName       string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	fromAddress    string
	fromName       string
	logger         *slog.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:          strings.TrimSpace(cfg.Token),
		fromAddress:    strings.TrimSpace(cfg.FromAddress),
		fromName:       strings.TrimSpace(cfg.FromName),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type sendRequest struct {
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name,omitempty"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTMLBody    string `json:"html_body"`
}

func (c *Client) Send(ctx context.Context, to, subject, htmlBody string) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "mail circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("mail provider is temporarily unavailable: %w", err)
		}
	}

	if strings.TrimSpace(to) == "" {
		return crerr.New("recipient address is required")
	}

	body, err := sonic.Marshal(sendRequest{
		FromAddress: c.fromAddress,
		FromName:    c.fromName,
		To:          strings.TrimSpace(to),
		Subject:     subject,
		HTMLBody:    htmlBody,
	})
	if err != nil {
		return crerr.Wrap(err, "marshal mail request")
	}

	sendURL := c.baseURL + "/v1/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, strings.NewReader(string(body)))
	if err != nil {
		return crerr.Wrap(err, "create mail request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		callErr := resilience.MarkTransient(fmt.Errorf("send mail to=%s: %w", to, err))
		c.recordCircuitResult(callErr)
		return callErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		callErr := fmt.Errorf("send mail to=%s status=%d body=%s", to, resp.StatusCode, strings.TrimSpace(string(raw)))
		if isRetryableStatus(resp.StatusCode) {
			marked := resilience.MarkTransient(callErr)
			c.recordCircuitResult(marked)
			return marked
		}
		c.recordCircuitResult(nil)
		return callErr
	}

	c.logger.InfoContext(ctx, "mail sent", "to", to, "subject", subject)
	c.recordCircuitResult(nil)
	return nil
}

func (c *Client) recordCircuitResult(err error) {
	if !c.circuitEnabled || c.breaker == nil {
		return
	}
	if err != nil && resilience.IsTransient(err) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

func isRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// RegistrationReceivedBody renders the confirmation-of-receipt email.
func RegistrationReceivedBody(teamID, teamName, captainName string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	line := func(format string, args ...any) {
		_, _ = fmt.Fprintf(buf, format, args...)
	}
	line("<p>Dear %s,</p>", captainName)
	line("<p>We have received the registration for <strong>%s</strong>.</p>", teamName)
	line("<p>Your team ID is <strong>%s</strong>. Quote it in all correspondence.</p>", teamID)
	line("<p>Your registration is pending review. You will be notified once it is approved.</p>")

	return buf.String()
}

// RegistrationApprovedBody renders the approval notification email.
func RegistrationApprovedBody(teamID, teamName, captainName string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	line := func(format string, args ...any) {
		_, _ = fmt.Fprintf(buf, format, args...)
	}
	line("<p>Dear %s,</p>", captainName)
	line("<p>The registration for <strong>%s</strong> (team ID %s) has been approved.</p>", teamName, teamID)
	line("<p>See you at the tournament.</p>")

	return buf.String()
}
