package tags

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIClient is the subset of the go-openai client used here.
type OpenAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAISuggester asks an OpenAI chat model for tags.
type OpenAISuggester struct {
	client OpenAIClient
	model  string
}

var _ Suggester = (*OpenAISuggester)(nil)

func NewOpenAISuggester(apiKey, model string) *OpenAISuggester {
	return NewOpenAISuggesterWithClient(openai.NewClient(apiKey), model)
}

// NewOpenAISuggesterWithClient is used by tests to inject a fake client.
func NewOpenAISuggesterWithClient(client OpenAIClient, model string) *OpenAISuggester {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAISuggester{client: client, model: model}
}

func (s *OpenAISuggester) SuggestTags(ctx context.Context, title string) ([]string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(title)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai suggest tags: %w", err)
	}
	if len(resp.Choices) == 0 {
		return []string{}, nil
	}
	return ParseTags(resp.Choices[0].Message.Content), nil
}
