package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

const messageColumns = "id, conversation_id, sender_id, role, content, upvotes, downvotes, sequence, created_at"

// PostgresMessageRepository implements repositories.MessageRepository
type PostgresMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	tx     repositories.TransactionManager
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
		tx:     NewTransactionManager(config.Pool, config.Logger),
	}
}

func scanMessage(row scanner) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Role, &m.Content, &m.Upvotes, &m.Downvotes, &m.Sequence, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateBatch reserves len(msgs) sequence numbers on the conversation row, then
// inserts the messages in order. Runs in the caller's transaction or its own.
func (r *PostgresMessageRepository) CreateBatch(ctx context.Context, conversationID string, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	return r.tx.ExecTx(ctx, func(ctx context.Context) error {
		executor := GetExecutor(ctx, r.pool)

		reserve := fmt.Sprintf(`
			UPDATE %s SET message_seq = message_seq + $2, updated_at = now()
			WHERE id = $1
			RETURNING message_seq
		`, r.tables.Conversations)

		var last int64
		if err := executor.QueryRow(ctx, reserve, conversationID, len(msgs)).Scan(&last); err != nil {
			return translateError(err, "reserve message sequence", "conversation", conversationID)
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (conversation_id, sender_id, role, content, sequence, created_at)
			VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
			RETURNING id, created_at
		`, r.tables.Messages)

		first := last - int64(len(msgs)) + 1
		for i, m := range msgs {
			m.ConversationID = conversationID
			m.Sequence = first + int64(i)

			var createdAt *time.Time
			if !m.CreatedAt.IsZero() {
				createdAt = &m.CreatedAt
			}
			if err := executor.QueryRow(ctx, insert, conversationID, m.SenderID, m.Role, m.Content, m.Sequence, createdAt).
				Scan(&m.ID, &m.CreatedAt); err != nil {
				return translateError(err, "insert message", "message", conversationID)
			}
		}
		return nil
	})
}

// GetByID retrieves a message by ID
func (r *PostgresMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, messageColumns, r.tables.Messages)

	m, err := scanMessage(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "get message", "message", id)
	}
	return m, nil
}

// ListByConversation returns messages ordered by sequence
func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE conversation_id = $1 ORDER BY sequence`, messageColumns, r.tables.Messages)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// CountByConversation counts the conversation's messages
func (r *PostgresMessageRepository) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE conversation_id = $1`, r.tables.Messages)

	var n int
	if err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, conversationID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// AddVote increments one counter atomically
func (r *PostgresMessageRepository) AddVote(ctx context.Context, id string, direction models.VoteDirection) (*models.Message, error) {
	var column string
	switch direction {
	case models.VoteUp:
		column = "upvotes"
	case models.VoteDown:
		column = "downvotes"
	default:
		return nil, fmt.Errorf("%w: unknown vote direction %q", domain.ErrValidation, direction)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = %s + 1 WHERE id = $1 RETURNING %s`,
		r.tables.Messages, column, column, messageColumns)

	m, err := scanMessage(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "vote message", "message", id)
	}
	return m, nil
}

// DeleteAfter deletes within one conversation only
func (r *PostgresMessageRepository) DeleteAfter(ctx context.Context, conversationID string, after time.Time, upToSequence int64) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE conversation_id = $1 AND created_at >= $2 AND sequence <= $3
	`, r.tables.Messages)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, conversationID, after, upToSequence)
	if err != nil {
		return 0, fmt.Errorf("delete messages after: %w", err)
	}
	return tag.RowsAffected(), nil
}
