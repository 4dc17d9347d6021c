package external

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/metrics"
)

// ChatApology is the reply shown whenever a completion cannot be produced.
const ChatApology = "Beklager, jeg kunne ikke behandle din besked. Prøv venligst igen."

const (
	defaultChatEndpoint  = "https://api.anthropic.com/v1/messages"
	defaultChatMaxTokens = 1000
)

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string     `json:"model"`
	MaxTokens int        `json:"max_tokens"`
	System    string     `json:"system"`
	Messages  []chatTurn `json:"messages"`
}

type chatResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

var errEmptyCompletion = errors.New("completion has no content")

// ChatClient calls a messages-style chat completion endpoint.
type ChatClient struct {
	httpClient *resty.Client
	config     domain.ChatConfig
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewChatClient creates a chat completion client.
func NewChatClient(config domain.ChatConfig, logger *logrus.Logger) *ChatClient {
	if config.Endpoint == "" {
		config.Endpoint = defaultChatEndpoint
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultChatMaxTokens
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		client.SetHeader("x-api-key", config.APIKey)
	}
	if config.APIVersion != "" {
		client.SetHeader("anthropic-version", config.APIVersion)
	}

	return &ChatClient{
		httpClient: client,
		config:     config,
		breaker:    newBreaker("Chat", logger),
		logger:     logger,
	}
}

// Complete returns the first content block of the reply. Any failure yields ChatApology.
func (c *ChatClient) Complete(ctx context.Context, system string, messages []domain.ChatMessage) string {
	turns := make([]chatTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, chatTurn{Role: string(m.Role), Content: m.Content})
	}
	request := chatRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		System:    system,
		Messages:  turns,
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.R().
			SetContext(ctx).
			SetBody(request).
			Post(c.config.Endpoint)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, &StatusError{Code: resp.StatusCode()}
		}

		var response chatResponse
		if err := json.Unmarshal(resp.Body(), &response); err != nil {
			return nil, err
		}
		if len(response.Content) == 0 || response.Content[0].Text == "" {
			return nil, errEmptyCompletion
		}
		return response.Content[0].Text, nil
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"model":    c.config.Model,
			"messages": len(messages),
		}).WithError(err).Warn("Chat completion failed")
		metrics.RecordChatCompletion("apology")
		return ChatApology
	}

	metrics.RecordChatCompletion("ok")
	return out.(string)
}

// BreakerState reports the chat circuit breaker.
func (c *ChatClient) BreakerState() BreakerState {
	return breakerState(c.breaker)
}
