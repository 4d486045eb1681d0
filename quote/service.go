package quote

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bestoffer.kz/travel/driver"
	"bestoffer.kz/travel/models"
)

// Service keeps the history of quote aggregation runs.
type Service interface {
	Record(ctx context.Context, run *models.QuoteRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.QuoteRun, error)
}

type service struct {
	repo               Repository
	transactionManager driver.Transactor
}

func NewService(repo Repository, tm driver.Transactor) Service {
	return &service{
		repo:               repo,
		transactionManager: tm,
	}
}

func (s *service) Record(ctx context.Context, run *models.QuoteRun) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.repo.Create(ctx, tx, run)
	})
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.QuoteRun, error) {
	var run *models.QuoteRun
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		run, err = s.repo.GetByID(ctx, tx, id)
		return err
	})
	return run, err
}
