package tags

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is fast and cheap, which is all tag suggestion needs.
const DefaultAnthropicModel = "claude-3-haiku-20240307"

// AnthropicClient is the subset of the Anthropic SDK used here.
type AnthropicClient interface {
	CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type anthropicClientWrapper struct {
	client anthropic.Client
}

func (w *anthropicClientWrapper) CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return w.client.Messages.New(ctx, params)
}

// AnthropicSuggester asks a Claude model for tags.
type AnthropicSuggester struct {
	client AnthropicClient
	model  string
}

var _ Suggester = (*AnthropicSuggester)(nil)

func NewAnthropicSuggester(apiKey, model string) *AnthropicSuggester {
	return NewAnthropicSuggesterWithClient(&anthropicClientWrapper{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, model)
}

// NewAnthropicSuggesterWithClient is used by tests to inject a fake client.
func NewAnthropicSuggesterWithClient(client AnthropicClient, model string) *AnthropicSuggester {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicSuggester{client: client, model: model}
}

func (s *AnthropicSuggester) SuggestTags(ctx context.Context, title string) ([]string, error) {
	msg, err := s.client.CreateMessage(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(title))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic suggest tags: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return ParseTags(text), nil
}
