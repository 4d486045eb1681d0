package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bestoffer.kz/travel/models"
)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, run *models.QuoteRun) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.QuoteRun, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) Create(ctx context.Context, tx pgx.Tx, run *models.QuoteRun) error {
	const query = `
    INSERT INTO quote_runs (id, age, country, start_date, end_date, successes, failures, started_at, completed_at)
    VALUES (@id, @age, @country, @start_date, @end_date, @successes, @failures, @started_at, @completed_at)
    ON CONFLICT (id) DO NOTHING
    `

	successes, err := json.Marshal(run.Successes)
	if err != nil {
		return fmt.Errorf("failed to encode successes: %w", err)
	}
	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return fmt.Errorf("failed to encode failures: %w", err)
	}

	args := pgx.NamedArgs{
		"id":           run.ID,
		"age":          run.Request.Age,
		"country":      run.Request.Country,
		"start_date":   run.Request.StartDate.Time(),
		"end_date":     run.Request.EndDate.Time(),
		"successes":    successes,
		"failures":     failures,
		"started_at":   run.StartedAt,
		"completed_at": run.CompletedAt,
	}

	if _, err = tx.Exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert quote run: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.QuoteRun, error) {
	const query = `
    SELECT id, age, country, start_date, end_date, successes, failures, started_at, completed_at
    FROM quote_runs
    WHERE id = @id
    `

	var (
		run                 models.QuoteRun
		startDate, endDate  time.Time
		successes, failures []byte
	)

	err := tx.QueryRow(ctx, query, pgx.NamedArgs{"id": id}).Scan(
		&run.ID,
		&run.Request.Age,
		&run.Request.Country,
		&startDate,
		&endDate,
		&successes,
		&failures,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote run: %w", err)
	}

	run.Request.StartDate = models.DateOf(startDate)
	run.Request.EndDate = models.DateOf(endDate)

	if err = json.Unmarshal(successes, &run.Successes); err != nil {
		return nil, fmt.Errorf("failed to decode successes: %w", err)
	}
	if err = json.Unmarshal(failures, &run.Failures); err != nil {
		return nil, fmt.Errorf("failed to decode failures: %w", err)
	}

	return &run, nil
}
