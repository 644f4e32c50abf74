package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/resilience"
)

// Completer talks to any OpenAI-compatible chat completions endpoint
// (Groq by default).
type Completer struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, model string, options Options) *Completer {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Completer{
		client:   openai.NewClient(opts...),
		model:    model,
		executor: options.ResilienceExecutor,
	}
}

func (c *Completer) Model() string {
	return c.model
}

func (c *Completer) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	var content string
	err := resilience.Call(ctx, c.executor, "openai.chat", func(callCtx context.Context) error {
		resp, err := c.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			return toStatusError(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai chat completion returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func toStatusError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai chat request: %w", err)
	}
	return &resilience.StatusError{
		Service:    "openai",
		Operation:  "chat",
		StatusCode: apiErr.StatusCode,
		Status:     fmt.Sprintf("%d %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode)),
		Body:       apiErr.Message,
	}
}
