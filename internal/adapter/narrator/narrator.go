// Package narrator phrases computed forecasts through an OpenAI-compatible
// chat-completion endpoint.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/go-resty/resty/v2"

	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/inventory"
	"github.com/pscheid92/stockpulse/internal/platform/retry"
)

const (
	defaultMaxTokens   = 200
	defaultTemperature = 0.3

	systemPrompt = "You are an inventory assistant for a small warehouse. " +
		"Rephrase the stock recommendation below for the person managing the stock in two or three plain sentences. " +
		"Keep every number exactly as given and do not add new figures."
)

// DefaultRetryPolicy retries transient failures twice with a short backoff.
var DefaultRetryPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   250 * time.Millisecond,
	MaxBackoff:       2 * time.Second,
	RateLimitBackoff: 2 * time.Second,
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
}

type Client struct {
	http   *resty.Client
	model  string
	cb     circuitbreaker.CircuitBreaker[any]
	policy retry.Policy
}

var _ domain.Narrator = (*Client)(nil)

func New(cfg Config, cb circuitbreaker.CircuitBreaker[any]) *Client {
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy
	}
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Narrator request failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Client{http: httpClient, model: cfg.Model, cb: cb, policy: policy}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StatusError is a non-2xx reply from the completion endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("narrator API returned %d", e.Code)
	}
	return fmt.Sprintf("narrator API returned %d: %s", e.Code, e.Message)
}

var errEmptyCompletion = errors.New("narrator API returned no text")

// Narrate returns a natural-language version of f.Recommendation. Callers are
// expected to fall back to the static text on any error.
func (c *Client) Narrate(ctx context.Context, f domain.Forecast) (string, error) {
	if !c.cb.TryAcquirePermit() {
		return "", fmt.Errorf("narrator unavailable: %w", circuitbreaker.ErrOpen)
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(f)},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}

	text, err := retry.Do(ctx, c.policy, classify, func(ctx context.Context) (string, error) {
		return c.complete(ctx, req)
	})
	if err != nil {
		c.cb.RecordError(err)
		return "", err
	}
	c.cb.RecordSuccess()
	return text, nil
}

func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	var (
		result  chatResponse
		failure apiErrorBody
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("narrator API call: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{Code: resp.StatusCode(), Message: failure.Error.Message}
	}

	if len(result.Choices) == 0 {
		return "", errEmptyCompletion
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func classify(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	if errors.Is(err, errEmptyCompletion) {
		return retry.Stop
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests:
			return retry.After
		case statusErr.Code >= http.StatusInternalServerError:
			return retry.Retry
		default:
			return retry.Stop
		}
	}

	// Transport errors: connection refused, resets, client timeouts.
	return retry.Retry
}

func buildPrompt(f domain.Forecast) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Material: %s\n", f.MaterialName)
	fmt.Fprintf(&sb, "Current stock: %s %s\n", inventory.FormatQuantity(f.CurrentStock), f.Unit.Label())
	fmt.Fprintf(&sb, "Minimum stock: %s %s\n", inventory.FormatQuantity(f.MinThreshold), f.Unit.Label())
	fmt.Fprintf(&sb, "Forecast period: %d days, based on %d days of history\n", f.HorizonDays, f.HistoryDays)
	fmt.Fprintf(&sb, "Predicted usage: %s %s\n", inventory.FormatQuantity(f.PredictedUsage), f.Unit.Label())
	fmt.Fprintf(&sb, "Recommended stock: %s %s\n", inventory.FormatQuantity(f.RecommendedStock), f.Unit.Label())
	fmt.Fprintf(&sb, "Action: %s\n", f.Action)
	if f.QuantityDelta > 0 {
		fmt.Fprintf(&sb, "Quantity: %s %s\n", inventory.FormatQuantity(f.QuantityDelta), f.Unit.Label())
	}
	fmt.Fprintf(&sb, "Recommendation: %s", f.Recommendation)
	return sb.String()
}
