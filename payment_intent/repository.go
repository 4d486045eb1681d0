package payment_intent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, paymentIntent *models.PaymentIntent) error
	GetByStripeID(ctx context.Context, tx pgx.Tx, stripeID string) (*models.PaymentIntent, error)
	GetOpenByOrderID(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*models.PaymentIntent, error)
	CountByOrderID(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enum.PaymentIntentStatus) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const selectColumns = `id, order_id, stripe_id, amount, currency, status, client_secret, created_at, updated_at`

func (r *repository) Create(ctx context.Context, tx pgx.Tx, paymentIntent *models.PaymentIntent) error {
	const query = `
    INSERT INTO payment_intents (id, order_id, stripe_id, amount, currency, status, client_secret, created_at, updated_at)
    VALUES (@id, @order_id, @stripe_id, @amount, @currency, @status, @client_secret, @created_at, @updated_at)
    `

	args := pgx.NamedArgs{
		"id":            paymentIntent.ID,
		"order_id":      paymentIntent.OrderID,
		"stripe_id":     paymentIntent.StripeID,
		"amount":        paymentIntent.Amount,
		"currency":      paymentIntent.Currency,
		"status":        string(paymentIntent.Status),
		"client_secret": paymentIntent.ClientSecret,
		"created_at":    paymentIntent.CreatedAt,
		"updated_at":    paymentIntent.UpdatedAt,
	}

	if _, err := tx.Exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

func (r *repository) GetByStripeID(ctx context.Context, tx pgx.Tx, stripeID string) (*models.PaymentIntent, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_intents WHERE stripe_id = @stripe_id`
	return scanPaymentIntent(tx.QueryRow(ctx, query, pgx.NamedArgs{"stripe_id": stripeID}))
}

// GetOpenByOrderID returns the newest intent for the order that has not
// failed or been canceled.
func (r *repository) GetOpenByOrderID(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*models.PaymentIntent, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_intents
    WHERE order_id = @order_id AND status NOT IN (@failed, @canceled)
    ORDER BY created_at DESC
    LIMIT 1`

	return scanPaymentIntent(tx.QueryRow(ctx, query, pgx.NamedArgs{
		"order_id": orderID,
		"failed":   string(enum.PaymentIntentStatusFailed),
		"canceled": string(enum.PaymentIntentStatusCanceled),
	}))
}

func (r *repository) CountByOrderID(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	const query = `SELECT COUNT(*) FROM payment_intents WHERE order_id = @order_id`

	var count int
	if err := tx.QueryRow(ctx, query, pgx.NamedArgs{"order_id": orderID}).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payment intents: %w", err)
	}
	return count, nil
}

func (r *repository) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enum.PaymentIntentStatus) error {
	const query = `
    UPDATE payment_intents SET status = @status, updated_at = @updated_at
    WHERE id = @id
    `

	if _, err := tx.Exec(ctx, query, pgx.NamedArgs{
		"id":         id,
		"status":     string(status),
		"updated_at": time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to update payment intent: %w", err)
	}
	return nil
}

func scanPaymentIntent(row pgx.Row) (*models.PaymentIntent, error) {
	var (
		pi     models.PaymentIntent
		status string
	)
	err := row.Scan(
		&pi.ID,
		&pi.OrderID,
		&pi.StripeID,
		&pi.Amount,
		&pi.Currency,
		&status,
		&pi.ClientSecret,
		&pi.CreatedAt,
		&pi.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	pi.Status = enum.PaymentIntentStatus(status)
	return &pi, nil
}
