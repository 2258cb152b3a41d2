package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when the API answers without any choice
var ErrEmptyResponse = errors.New("no response from OpenAI")

// Config holds the API connection settings
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	MaxRetries   int
	RetryBackoff time.Duration
}

// chatClient wraps go-openai with rate limit retries
type chatClient struct {
	client  *openai.Client
	cfg     Config
	logger  *zap.Logger
	sleepFn func(ctx context.Context, d time.Duration) error
}

func newChatClient(cfg Config, logger *zap.Logger) *chatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	return &chatClient{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		logger:  logger,
		sleepFn: sleepContext,
	}
}

// complete sends req and returns the first choice's content. Rate limited
// calls are retried with a linearly growing wait.
func (c *chatClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", ErrEmptyResponse
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !isRateLimited(err) || attempt == c.cfg.MaxRetries {
			break
		}

		wait := time.Duration(attempt) * c.cfg.RetryBackoff
		c.logger.Warn("Rate limited, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.cfg.MaxRetries),
			zap.Duration("wait", wait))
		if err := c.sleepFn(ctx, wait); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("OpenAI API call failed: %w", lastErr)
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
