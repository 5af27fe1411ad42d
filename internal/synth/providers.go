package synth

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/property-research/internal/resilience"
	"github.com/sells-group/property-research/pkg/anthropic"
	"github.com/sells-group/property-research/pkg/perplexity"
)

// Params are the generation settings shared by all providers.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Anthropic completes prompts with Claude models.
type Anthropic struct {
	client anthropic.Client
	params Params
}

// NewAnthropic creates an Anthropic completer.
func NewAnthropic(c anthropic.Client, p Params) *Anthropic {
	return &Anthropic{client: c, params: p}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	temp := a.params.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.params.Model,
		MaxTokens:   int64(a.params.MaxTokens),
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(a.params.Model, "synth")
	return resp.Text(), nil
}

// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouter completes prompts through OpenRouter's OpenAI-compatible API.
type OpenRouter struct {
	client *openai.Client
	params Params
}

// NewOpenRouter creates an OpenRouter completer. An empty baseURL uses
// DefaultOpenRouterURL.
func NewOpenRouter(apiKey, baseURL string, p Params) *OpenRouter {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterURL
	}
	return &OpenRouter{client: openai.NewClientWithConfig(cfg), params: p}
}

func (o *OpenRouter) Name() string { return "openrouter" }

func (o *OpenRouter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   o.params.MaxTokens,
		Temperature: float32(o.params.Temperature),
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("openrouter: no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAI(err error) error {
	wrapped := eris.Wrap(err, "openrouter: chat completion")
	code := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	}
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(wrapped, code)
	}
	return wrapped
}

// Perplexity completes prompts with Perplexity's online models.
type Perplexity struct {
	client perplexity.Client
	params Params
}

// NewPerplexity creates a Perplexity completer.
func NewPerplexity(c perplexity.Client, p Params) *Perplexity {
	return &Perplexity{client: c, params: p}
}

func (p *Perplexity) Name() string { return "perplexity" }

func (p *Perplexity) Complete(ctx context.Context, system, user string) (string, error) {
	temp := p.params.Temperature
	maxTokens := p.params.MaxTokens
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: p.params.Model,
		Messages: []perplexity.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
