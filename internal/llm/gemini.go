package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chefmate-backend/internal/models"
)

// GeminiProvider serves gemini/* models. A leading system message becomes
// the model's system instruction; user and assistant turns map to the
// "user" and "model" chat roles.
type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if len(req.Messages) == 0 {
		return ChatResponse{}, fmt.Errorf("messages are required")
	}

	model := p.client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	msgs := req.Messages
	if msgs[0].Role == models.RoleSystem {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(msgs[0].Content)},
		}
		msgs = msgs[1:]
	}
	if len(msgs) == 0 {
		return ChatResponse{}, fmt.Errorf("at least one non-system message is required")
	}

	session := model.StartChat()
	for _, m := range msgs[:len(msgs)-1] {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(msgs[len(msgs)-1].Content))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("gemini request failed: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return ChatResponse{}, ErrNoChoices
	}

	return ChatResponse{Content: text, Model: req.Model}, nil
}

// extractText pulls the text parts out of a Gemini response.
func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					sb.WriteString(string(text))
				}
			}
		}
	}
	return sb.String()
}

// Ensure interface compliance
var _ Provider = (*GeminiProvider)(nil)
