package services

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"chefmate-backend/internal/models"
)

// perMessageOverhead approximates the chat framing tokens each message costs
// on top of its content.
const perMessageOverhead = 8

// TokenBudget bounds the size of the history view sent to the provider.
// Trimming never touches the stored or returned history.
type TokenBudget struct {
	enc    tokenizer.Codec
	budget int
}

// NewTokenBudget loads the cl100k_base encoding. A zero or negative budget
// disables trimming.
func NewTokenBudget(budget int) (*TokenBudget, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &TokenBudget{enc: enc, budget: budget}, nil
}

// Tokens approximates the prompt cost of the messages.
func (b *TokenBudget) Tokens(messages []models.Message) int {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	ids, _, _ := b.enc.Encode(sb.String())
	return len(ids) + len(messages)*perMessageOverhead
}

// Fit returns a view of messages within the budget. A leading system message
// is always kept and the oldest turns after it are dropped first. The final
// turn is never dropped, even when it alone exceeds the budget.
func (b *TokenBudget) Fit(messages []models.Message) []models.Message {
	if b == nil || b.budget <= 0 {
		return messages
	}
	if b.Tokens(messages) <= b.budget {
		return messages
	}

	keep := 0
	if len(messages) > 0 && messages[0].Role == models.RoleSystem {
		keep = 1
	}
	first := messages[:keep]
	rest := messages[keep:]

	view := messages
	for len(rest) > 1 {
		rest = rest[1:]
		view = make([]models.Message, 0, len(first)+len(rest))
		view = append(view, first...)
		view = append(view, rest...)
		if b.Tokens(view) <= b.budget {
			break
		}
	}
	return view
}
