package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chefmate-backend/internal/models"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	c.ID = uuid.New()

	query := `INSERT INTO conversations (id, session_id, title)
		VALUES ($1, $2, $3) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query, c.ID, c.SessionID, c.Title).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	query := `SELECT c.id, c.session_id, c.title, c.context_text, c.context_source,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count,
		c.created_at, c.updated_at
		FROM conversations c WHERE c.id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.SessionID, &c.Title, &c.ContextText, &c.ContextSource,
		&c.MessageCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM conversations WHERE session_id = $1", sessionID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT c.id, c.session_id, c.title, c.context_text, c.context_source,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count,
		c.created_at, c.updated_at
		FROM conversations c WHERE c.session_id = $1
		ORDER BY c.updated_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		c := &models.Conversation{}
		err := rows.Scan(
			&c.ID, &c.SessionID, &c.Title, &c.ContextText, &c.ContextSource,
			&c.MessageCount, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		conversations = append(conversations, c)
	}

	return conversations, total, rows.Err()
}

func (r *ConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	return err
}

func (r *ConversationRepo) UpdateContext(ctx context.Context, id uuid.UUID, text, source string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE conversations SET context_text = $1, context_source = $2, updated_at = NOW() WHERE id = $3",
		text, source, id,
	)
	return err
}

func (r *ConversationRepo) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]models.StoredMessage, error) {
	query := `SELECT id, conversation_id, seq, role, content, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.StoredMessage, 0)
	for rows.Next() {
		var m models.StoredMessage
		err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// AppendTurn inserts the user message and the assistant reply as one
// transaction and bumps the conversation's updated_at. Both messages get
// their ID, seq and created_at filled in. A failed turn writes nothing.
func (r *ConversationRepo) AppendTurn(ctx context.Context, userMsg, assistantMsg *models.StoredMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	const insert = `INSERT INTO messages (id, conversation_id, seq, role, content)
		VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = $2), $3, $4)
		RETURNING seq, created_at`

	userMsg.ID = uuid.New()
	err = tx.QueryRow(ctx, insert,
		userMsg.ID, userMsg.ConversationID, userMsg.Role, userMsg.Content,
	).Scan(&userMsg.Seq, &userMsg.CreatedAt)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	assistantMsg.ID = uuid.New()
	err = tx.QueryRow(ctx, insert,
		assistantMsg.ID, assistantMsg.ConversationID, assistantMsg.Role, assistantMsg.Content,
	).Scan(&assistantMsg.Seq, &assistantMsg.CreatedAt)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	_, err = tx.Exec(ctx, "UPDATE conversations SET updated_at = NOW() WHERE id = $1", userMsg.ConversationID)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func (r *ConversationRepo) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM conversations WHERE updated_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
