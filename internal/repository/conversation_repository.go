package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository/common"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository stores the chat room of each agreement and its messages.
type ConversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Ensure returns the agreement's conversation, creating it on first use. The
// homeowner user id is refreshed in case they registered since.
func (r *ConversationRepository) Ensure(ctx context.Context, agreementID, contractorUserID uuid.UUID, homeownerUserID *uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.db.GetContext(ctx, &c, `
		INSERT INTO conversations (agreement_id, contractor_user_id, homeowner_user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (agreement_id) DO UPDATE
		SET homeowner_user_id = COALESCE(EXCLUDED.homeowner_user_id, conversations.homeowner_user_id)
		RETURNING *
	`, agreementID, contractorUserID, homeownerUserID); err != nil {
		return nil, fmt.Errorf("conversation repository: ensure %w", err)
	}
	return &c, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return common.GetByID[models.Conversation](ctx, r.db, "conversations", id, ErrConversationNotFound)
}

// ListForUser returns the conversations the user participates in.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	out := []models.Conversation{}
	if err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM conversations
		WHERE contractor_user_id = $1 OR homeowner_user_id = $1
		ORDER BY created_at DESC
	`, userID); err != nil {
		return nil, fmt.Errorf("conversation repository: list for user %w", err)
	}
	return out, nil
}

func (r *ConversationRepository) AddMessage(ctx context.Context, m *models.Message) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO messages (conversation_id, author_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, m.ConversationID, m.AuthorID, m.Text).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("conversation repository: add message %w", err)
	}
	return nil
}

// ListMessages returns a page of messages, oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, page common.PageRequest) ([]models.Message, int, error) {
	ds := common.PG.From("messages").
		Where(goqu.C("conversation_id").Eq(conversationID)).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	return common.SelectPage[models.Message](ctx, r.db, ds, page)
}
