package llm

import (
	"context"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider reaches models behind OpenRouter through its
// OpenAI-compatible chat completions API.
type OpenRouterProvider struct {
	client openai.Client
}

func NewOpenRouterProvider(apiKey, referer string) *OpenRouterProvider {
	return newOpenRouterProviderWithHTTPClient(apiKey, referer, &http.Client{Timeout: requestTimeout})
}

func newOpenRouterProviderWithHTTPClient(apiKey, referer string, httpClient *http.Client) *OpenRouterProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(openRouterBaseURL),
		option.WithHTTPClient(httpClient),
	}
	// OpenRouter uses these for app attribution and ranking.
	if referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", referer))
	}
	opts = append(opts, option.WithHeader("X-Title", "ChefMate"))

	return &OpenRouterProvider{client: openai.NewClient(opts...)}
}

func (p *OpenRouterProvider) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	params, err := buildChatParams(req)
	if err != nil {
		return ChatResponse{}, err
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ChatResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, ErrNoChoices
	}

	return ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}

// Ensure interface compliance
var _ Provider = (*OpenRouterProvider)(nil)
