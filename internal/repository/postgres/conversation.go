package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

const conversationColumns = "id, user_id, business_id, title, visibility, message_seq, created_at, updated_at"

// PostgresConversationRepository implements repositories.ConversationRepository
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(config *RepositoryConfig) repositories.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanConversation(row scanner) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.BusinessID, &c.Title, &c.Visibility, &c.MessageSeq, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a conversation
func (r *PostgresConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, business_id, title, visibility)
		VALUES ($1, $2, $3, $4)
		RETURNING id, message_seq, created_at, updated_at
	`, r.tables.Conversations)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, c.UserID, c.BusinessID, c.Title, c.Visibility).
		Scan(&c.ID, &c.MessageSeq, &c.CreatedAt, &c.UpdatedAt)
	return translateError(err, "create conversation", "conversation", c.Title)
}

// GetByID retrieves a conversation by ID
func (r *PostgresConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, conversationColumns, r.tables.Conversations)

	c, err := scanConversation(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "get conversation", "conversation", id)
	}
	return c, nil
}

// GetForUpdate takes a row lock held until the surrounding transaction ends
func (r *PostgresConversationRepository) GetForUpdate(ctx context.Context, id string) (*models.Conversation, error) {
	tx := repositories.GetTx(ctx)
	if tx == nil {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, conversationColumns, r.tables.Conversations)

	c, err := scanConversation(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "lock conversation", "conversation", id)
	}
	return c, nil
}

// ListByUser returns the user's conversations, most recently updated first
func (r *PostgresConversationRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	return r.list(ctx, "user_id", userID)
}

// ListByBusiness returns conversations scoped to the business
func (r *PostgresConversationRepository) ListByBusiness(ctx context.Context, businessID string) ([]models.Conversation, error) {
	return r.list(ctx, "business_id", businessID)
}

func (r *PostgresConversationRepository) list(ctx context.Context, column, value string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY updated_at DESC`,
		conversationColumns, r.tables.Conversations, column)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

// Update persists title and visibility
func (r *PostgresConversationRepository) Update(ctx context.Context, c *models.Conversation) error {
	query := fmt.Sprintf(`
		UPDATE %s SET title = $2, visibility = $3, updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, r.tables.Conversations, conversationColumns)

	updated, err := scanConversation(GetExecutor(ctx, r.pool).QueryRow(ctx, query, c.ID, c.Title, c.Visibility))
	if err != nil {
		return translateError(err, "update conversation", "conversation", c.ID)
	}
	*c = *updated
	return nil
}

// Delete removes the conversation; messages go with it via ON DELETE CASCADE
func (r *PostgresConversationRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Conversations)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return translateError(err, "delete conversation", "conversation", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
