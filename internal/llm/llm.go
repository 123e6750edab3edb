// Package llm routes chat completion requests to model providers. Model
// identifiers follow the litellm convention: "gemini/<model>" and
// "openrouter/<vendor>/<model>" select their providers, anything else goes
// to OpenAI. The routing prefix is stripped before the upstream call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chefmate-backend/internal/models"
)

// ErrNoChoices is returned when a provider responds without any completion
// choices.
var ErrNoChoices = errors.New("llm: response contained no choices")

// ChatRequest is a provider-agnostic completion request. Messages are in
// conversation order.
type ChatRequest struct {
	Model       string
	Messages    []models.Message
	Temperature float64
	MaxTokens   int
}

// ChatResponse carries the first choice's content.
type ChatResponse struct {
	Content string
	Model   string
}

// Provider is a chat completion backend.
type Provider interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// RouterConfig lists the provider credentials. Empty keys leave the
// corresponding route unconfigured; routing to it then fails with a clear
// error instead of an upstream 401.
type RouterConfig struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	OpenRouterAPIKey string
	Referer          string
}

// Router dispatches completion requests by model identifier.
type Router struct {
	openai     Provider
	gemini     Provider
	openrouter Provider
}

func NewRouter(ctx context.Context, cfg RouterConfig) (*Router, error) {
	r := &Router{}

	if cfg.OpenAIAPIKey != "" {
		r.openai = NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}
	if cfg.GeminiAPIKey != "" {
		p, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		r.gemini = p
	}
	if cfg.OpenRouterAPIKey != "" {
		r.openrouter = NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.Referer)
	}

	return r, nil
}

// Complete implements Provider by dispatching on the model prefix.
func (r *Router) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	provider, model, err := r.route(req.Model)
	if err != nil {
		return ChatResponse{}, err
	}
	req.Model = model
	return provider.Complete(ctx, req)
}

// CheckModel reports whether the given model identifier has a configured
// provider. Called at startup so a missing API key fails fast.
func (r *Router) CheckModel(model string) error {
	_, _, err := r.route(model)
	return err
}

func (r *Router) route(model string) (Provider, string, error) {
	switch {
	case strings.HasPrefix(model, "gemini/"):
		if r.gemini == nil {
			return nil, "", fmt.Errorf("model %q requires GEMINI_API_KEY", model)
		}
		return r.gemini, strings.TrimPrefix(model, "gemini/"), nil
	case strings.HasPrefix(model, "openrouter/"):
		if r.openrouter == nil {
			return nil, "", fmt.Errorf("model %q requires OPENROUTER_API_KEY", model)
		}
		return r.openrouter, strings.TrimPrefix(model, "openrouter/"), nil
	default:
		if r.openai == nil {
			return nil, "", fmt.Errorf("model %q requires OPENAI_API_KEY", model)
		}
		return r.openai, model, nil
	}
}

var _ Provider = (*Router)(nil)
