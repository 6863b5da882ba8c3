// Package tags suggests descriptive tags for a book title through a hosted
// text-generation API. Suggestion is optional: without a credential
// NewSuggester returns nil and callers skip the step.
package tags

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mrlokans/flashshelf/internal/config"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	maxTokens = 128
)

// Suggester returns tags for a title.
type Suggester interface {
	SuggestTags(ctx context.Context, title string) ([]string, error)
}

// Prompt is the fixed instruction sent along with the title.
func Prompt(title string) string {
	return fmt.Sprintf("次の本のタイトルから、その本の内容やジャンルを表す短いタグを3〜5個考えて、"+
		"カンマ区切りで出力してください。タグ以外の文章は出力しないでください。\n\nタイトル: %s", title)
}

// NewSuggester builds the configured provider. It returns nil when the
// provider's API key is not set or the provider is unknown.
func NewSuggester(cfg config.Tags) Suggester {
	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic, "":
		if cfg.AnthropicAPIKey == "" {
			return nil
		}
		return NewAnthropicSuggester(cfg.AnthropicAPIKey, cfg.Model)
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return NewOpenAISuggester(cfg.OpenAIAPIKey, cfg.Model)
	default:
		log.Printf("[tags] unknown TAGS_PROVIDER %q, tag suggestion disabled", cfg.Provider)
		return nil
	}
}

// ShouldSuggest reports whether a lookup result needs generated tags: only
// when it brought no categories and a suggester is configured.
func ShouldSuggest(categories []string, suggester Suggester) bool {
	return len(categories) == 0 && suggester != nil
}

// ParseTags splits model output on ASCII and ideographic commas, trimming
// entries and dropping empty ones.
func ParseTags(text string) []string {
	text = strings.ReplaceAll(text, "、", ",")
	text = strings.ReplaceAll(text, "，", ",")

	tags := []string{}
	for _, part := range strings.Split(text, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
