package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// ArchivedMessage is one stored chat message.
type ArchivedMessage struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	Seq            int             `json:"seq"`
	Role           domain.ChatRole `json:"role"`
	Content        string          `json:"content"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ConversationSummary describes one archived conversation.
type ConversationSummary struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Messages       int       `json:"messages"`
	StartedAt      time.Time `json:"started_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

// ChatArchive keeps a server-side copy of chat conversations.
type ChatArchive struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewChatArchive creates a new chat archive repository
func NewChatArchive(db *pgxpool.Pool, logger *logrus.Logger) *ChatArchive {
	return &ChatArchive{
		db:  db,
		log: logger,
	}
}

// Append stores messages at the end of a conversation in one transaction.
func (r *ChatArchive) Append(ctx context.Context, conversationID uuid.UUID, messages ...domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE conversation_id = $1`,
		conversationID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("reading conversation sequence: %w", err)
	}

	batch := &pgx.Batch{}
	for i, m := range messages {
		created := m.Timestamp
		if created.IsZero() {
			created = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO chat_messages (id, conversation_id, seq, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), conversationID, next+i, string(m.Role), m.Content, created,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		r.log.WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"messages":        len(messages),
		}).WithError(err).Error("Failed to archive chat messages")
		return fmt.Errorf("archiving chat messages: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chat messages: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"messages":        len(messages),
	}).Debug("Chat messages archived")
	return nil
}

// Conversation returns the messages of a conversation in order.
func (r *ChatArchive) Conversation(ctx context.Context, conversationID uuid.UUID) ([]ArchivedMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, seq, role, content, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	defer rows.Close()

	var out []ArchivedMessage
	for rows.Next() {
		var m ArchivedMessage
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Seq, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.Role = domain.ChatRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Conversations lists the most recently active conversations.
func (r *ChatArchive) Conversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT conversation_id, COUNT(*), MIN(created_at), MAX(created_at)
		FROM chat_messages
		GROUP BY conversation_id
		ORDER BY MAX(created_at) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ConversationID, &s.Messages, &s.StartedAt, &s.LastMessageAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteConversation removes every message of a conversation.
func (r *ChatArchive) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
