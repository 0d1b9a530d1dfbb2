// Package openai provides an OpenAI-compatible llm.Provider implementation.
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/glitchlab/glitchlab/pkg/llm"
)

// Provider implements llm.Provider against the OpenAI chat completions API,
// or any OpenAI-compatible endpoint reached via WithBaseURL.
type Provider struct {
	client  openai.Client
	apiKey  string
	baseURL string
	model   string
}

// Option configures a Provider.
type Option func(*Provider)

// WithModel sets the model used for completions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint other than
// the public OpenAI API (Azure OpenAI, a local model server, ...).
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// New creates a Provider. An empty apiKey falls back to OPENAI_API_KEY.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key required (pass one or set OPENAI_API_KEY)")
	}

	p := &Provider{apiKey: apiKey, model: "gpt-4o"}
	for _, opt := range opts {
		opt(p)
	}
	if p.baseURL == "" {
		p.baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(p.apiKey)}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = openai.NewClient(clientOpts...)

	return p, nil
}

// CloneWithModel returns a Provider sharing this one's client and
// credentials but targeting a different model, implementing
// llm.ModelCloner.
func (p *Provider) CloneWithModel(model string) llm.Provider {
	clone := *p
	clone.model = model
	return &clone
}

// Model returns the model name this Provider targets.
func (p *Provider) Model() string {
	return p.model
}

// Complete sends messages to the chat completions API and returns the full
// response plus usage accounting for budget tracking.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	options := llm.ResolveOptions(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toOpenAIMessages(messages),
	}
	if options.Temperature > 0 {
		params.Temperature = openai.Float(options.Temperature)
	}
	if options.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: empty choices")
	}

	return &llm.Response{
		Content:    resp.Choices[0].Message.Content,
		Model:      string(resp.Model),
		TokensUsed: int(resp.Usage.TotalTokens),
		Cost:       estimateCost(p.model, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens)),
	}, nil
}

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// perMillion holds (prompt, completion) USD cost per million tokens for the
// models this pipeline is expected to run against. Unknown models fall back
// to a conservative default so budget tracking never silently reports zero
// cost for real spend.
var perMillion = map[string][2]float64{
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"o1":          {15.00, 60.00},
	"o1-mini":     {1.10, 4.40},
}

func estimateCost(model string, promptTokens, completionTokens int) float64 {
	rates, ok := perMillion[model]
	if !ok {
		rates = [2]float64{5.00, 15.00}
	}
	return float64(promptTokens)/1_000_000*rates[0] + float64(completionTokens)/1_000_000*rates[1]
}
