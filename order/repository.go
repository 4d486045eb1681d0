package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, order *models.Order) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enum.OrderStatus) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	const query = `
    INSERT INTO orders (id, customer_id, idempotency_key, provider, status, payload, premium, currency, confirmation, failure_reason, created_at, updated_at)
    VALUES (@id, @customer_id, @idempotency_key, @provider, @status, @payload, @premium, @currency, @confirmation, @failure_reason, @created_at, @updated_at)
    `

	payload, err := json.Marshal(order.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode order payload: %w", err)
	}

	var confirmation []byte
	if len(order.Confirmation) > 0 {
		confirmation = order.Confirmation
	}

	args := pgx.NamedArgs{
		"id":              order.ID,
		"customer_id":     order.CustomerID,
		"idempotency_key": order.IdempotencyKey,
		"provider":        order.Provider,
		"status":          string(order.Status),
		"payload":         payload,
		"premium":         order.Premium,
		"currency":        order.Currency,
		"confirmation":    confirmation,
		"failure_reason":  order.FailureReason,
		"created_at":      order.CreatedAt,
		"updated_at":      order.UpdatedAt,
	}

	if _, err = tx.Exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Order, error) {
	const query = `
    SELECT id, customer_id, idempotency_key, provider, status, payload, premium, currency, confirmation, failure_reason, created_at, updated_at
    FROM orders
    WHERE id = @id
    `

	var (
		order        models.Order
		status       string
		payload      []byte
		confirmation []byte
	)

	err := tx.QueryRow(ctx, query, pgx.NamedArgs{"id": id}).Scan(
		&order.ID,
		&order.CustomerID,
		&order.IdempotencyKey,
		&order.Provider,
		&status,
		&payload,
		&order.Premium,
		&order.Currency,
		&confirmation,
		&order.FailureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.Status = enum.OrderStatus(status)
	order.Confirmation = confirmation
	if err = json.Unmarshal(payload, &order.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode order payload: %w", err)
	}

	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enum.OrderStatus) error {
	const query = `
    UPDATE orders SET status = @status, updated_at = @updated_at
    WHERE id = @id
    `

	tag, err := tx.Exec(ctx, query, pgx.NamedArgs{
		"id":         id,
		"status":     string(status),
		"updated_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
