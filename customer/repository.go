package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bestoffer.kz/travel/models"
)

var _ Repository = (*repository)(nil)

// Repository stores policy holders. Customers are keyed by IIN, so
// ordering twice with the same IIN updates the contact details in place.
type Repository interface {
	Upsert(ctx context.Context, tx pgx.Tx, customer *models.Customer) error
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Customer, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

// Upsert sets customer.ID and the timestamps from the stored row.
func (r *repository) Upsert(ctx context.Context, tx pgx.Tx, customer *models.Customer) error {
	const query = `
    INSERT INTO customers (iin, phone_number, email, address)
    VALUES (@iin, @phone_number, @email, @address)
    ON CONFLICT (iin) DO UPDATE SET
        phone_number = EXCLUDED.phone_number,
        email = EXCLUDED.email,
        address = EXCLUDED.address,
        updated_at = NOW()
    RETURNING id, created_at, updated_at
    `

	args := pgx.NamedArgs{
		"iin":          customer.IIN,
		"phone_number": customer.PhoneNumber,
		"email":        customer.Email,
		"address":      customer.Address,
	}

	if err := tx.QueryRow(ctx, query, args).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Customer, error) {
	const query = `
    SELECT id, iin, phone_number, email, address, created_at, updated_at
    FROM customers
    WHERE id = @id
    `

	customer := models.NewCustomer()
	err := tx.QueryRow(ctx, query, pgx.NamedArgs{"id": id}).Scan(
		&customer.ID,
		&customer.IIN,
		&customer.PhoneNumber,
		&customer.Email,
		&customer.Address,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}
