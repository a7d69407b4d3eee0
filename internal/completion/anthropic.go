package completion

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/retry"
)

// AnthropicProvider implements Provider on github.com/anthropics/anthropic-sdk-go,
// the default completion producer per SPEC_FULL.md §4.3/§4.6.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	policy    retry.Policy
	log       *logging.Logger
}

// NewAnthropicProvider constructs a Provider from an API key and model
// name (config.Config.CompletionModel).
func NewAnthropicProvider(apiKey, model string, log *logging.Logger) *AnthropicProvider {
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: 1024,
		policy:    retry.DefaultPolicy(),
		log:       log,
	}
}

// Complete sends one single-turn request and returns the first text block
// of the response, retrying transient network failures per internal/retry.
func (p *AnthropicProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	var resp *anthropic.Message
	err := retry.Do(ctx, p.policy, retry.NetworkTransient, func() error {
		var err error
		resp, err = p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     p.model,
			MaxTokens: p.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
			},
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic completion: no text block in response")
}

var _ Provider = (*AnthropicProvider)(nil)
