package services

import (
	"context"
	"strings"

	"chefmate-backend/internal/llm"
	"chefmate-backend/internal/models"
)

// AgentService is the chef agent: it guarantees the system prompt leads every
// conversation, forwards the history to the completion provider, and appends
// the assistant's reply.
type AgentService struct {
	provider llm.Provider
	model    string
	budget   *TokenBudget
}

// NewAgentService wires the agent to a completion provider. model is fixed
// for the process lifetime (MODEL_NAME, read once at startup). budget may be
// nil to disable history trimming.
func NewAgentService(provider llm.Provider, model string, budget *TokenBudget) *AgentService {
	return &AgentService{provider: provider, model: model, budget: budget}
}

// Respond runs one agent turn. The returned history is the input with a
// system message prepended when it was missing and the assistant's trimmed
// reply appended; the input slice is never mutated.
//
// Provider failures are returned as-is; no history comes back with them.
func (s *AgentService) Respond(ctx context.Context, messages []models.Message) ([]models.Message, error) {
	return s.respond(ctx, messages, SystemPrompt)
}

// RespondWithContext behaves like Respond but folds imported recipe context
// into the system message it prepends. A caller-supplied leading system
// message still takes precedence unchanged.
func (s *AgentService) RespondWithContext(ctx context.Context, messages []models.Message, contextText string) ([]models.Message, error) {
	return s.respond(ctx, messages, composeSystemPrompt(contextText))
}

func (s *AgentService) respond(ctx context.Context, messages []models.Message, systemPrompt string) ([]models.Message, error) {
	current := messages
	if len(messages) == 0 || messages[0].Role != models.RoleSystem {
		current = make([]models.Message, 0, len(messages)+1)
		current = append(current, models.Message{Role: models.RoleSystem, Content: systemPrompt})
		current = append(current, messages...)
	}

	// Only the request view is trimmed to the token budget; the history
	// returned below is always the full one.
	resp, err := s.provider.Complete(ctx, llm.ChatRequest{
		Model:    s.model,
		Messages: s.budget.Fit(current),
	})
	if err != nil {
		return nil, err
	}

	reply := strings.TrimSpace(resp.Content)

	updated := make([]models.Message, len(current), len(current)+1)
	copy(updated, current)
	updated = append(updated, models.Message{Role: models.RoleAssistant, Content: reply})
	return updated, nil
}
