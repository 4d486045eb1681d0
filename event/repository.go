package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"bestoffer.kz/travel/driver"
	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	MarkAsProcessed(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

func (r *repository) Create(ctx context.Context, event *models.Event) error {
	const query = `
    INSERT INTO events (id, type, payload, processed, created_at, updated_at)
    VALUES (@id, @type, @payload, @processed, @created_at, @created_at)
    ON CONFLICT (id) DO NOTHING
    `

	args := pgx.NamedArgs{
		"id":         event.ID,
		"type":       string(event.Type),
		"payload":    []byte(event.Payload),
		"processed":  event.Processed,
		"created_at": event.CreatedAt,
	}

	if _, err := r.conn.Exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const query = `
    SELECT id, type, payload, processed, created_at
    FROM events
    WHERE id = @id
    `

	var (
		event     models.Event
		eventType string
		payload   []byte
	)
	err := r.conn.QueryRow(ctx, query, pgx.NamedArgs{"id": id}).Scan(
		&event.ID,
		&eventType,
		&payload,
		&event.Processed,
		&event.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	event.Type = enum.EventType(eventType)
	event.Payload = payload
	return &event, nil
}

// MarkAsProcessed returns models.ErrNotFound when the event was never
// recorded.
func (r *repository) MarkAsProcessed(ctx context.Context, id uuid.UUID) error {
	const query = `
    UPDATE events SET processed = TRUE, updated_at = NOW()
    WHERE id = @id
    `

	tag, err := r.conn.Exec(ctx, query, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("processed event was never recorded", zap.String("event_id", id.String()))
		return models.ErrNotFound
	}
	return nil
}
