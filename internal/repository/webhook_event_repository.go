package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

var ErrWebhookEventNotFound = errors.New("webhook event not found")

// WebhookEventRepository is the durable log of Stripe deliveries.
type WebhookEventRepository struct {
	db *sqlx.DB
}

func NewWebhookEventRepository(db *sqlx.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Begin records a delivery. A redelivery of an event already processed or
// ignored returns done=true; a redelivery of a failed event is retried and
// its attempt counter goes up.
func (r *WebhookEventRepository) Begin(ctx context.Context, eventID, eventType string, payload json.RawMessage) (done bool, err error) {
	var status string
	if err := r.db.GetContext(ctx, &status, `
		INSERT INTO webhook_events (stripe_event_id, event_type, payload, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stripe_event_id) DO UPDATE
		SET attempts = webhook_events.attempts + 1,
			status = CASE WHEN webhook_events.status IN ('processed', 'ignored') THEN webhook_events.status ELSE EXCLUDED.status END,
			updated_at = NOW()
		RETURNING status
	`, eventID, eventType, string(payload), models.WebhookStatusReceived); err != nil {
		return false, fmt.Errorf("webhook event repository: begin %w", err)
	}
	return status == models.WebhookStatusProcessed || status == models.WebhookStatusIgnored, nil
}

// Finish stores the outcome of a delivery.
func (r *WebhookEventRepository) Finish(ctx context.Context, eventID, status, errText string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events SET status = $2, error = $3, updated_at = NOW() WHERE stripe_event_id = $1
	`, eventID, status, errText); err != nil {
		return fmt.Errorf("webhook event repository: finish %w", err)
	}
	return nil
}

// ListFailed returns the dead-letter rows, newest first.
func (r *WebhookEventRepository) ListFailed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	out := []models.WebhookEvent{}
	if err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM webhook_events WHERE status = $1 ORDER BY created_at DESC LIMIT $2
	`, models.WebhookStatusFailed, limit); err != nil {
		return nil, fmt.Errorf("webhook event repository: list failed %w", err)
	}
	return out, nil
}

// Get returns one stored delivery.
func (r *WebhookEventRepository) Get(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var evt models.WebhookEvent
	if err := r.db.GetContext(ctx, &evt, `SELECT * FROM webhook_events WHERE stripe_event_id = $1`, eventID); err != nil {
		return nil, notFoundOr(err, ErrWebhookEventNotFound, "webhook event repository: get")
	}
	return &evt, nil
}
