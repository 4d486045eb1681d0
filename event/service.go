package event

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"bestoffer.kz/travel/models"
)

// Service is the processed-event ledger.
type Service interface {
	Create(ctx context.Context, event *models.Event) error
	IsEventProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)
	MarkEventAsProcessed(ctx context.Context, event *models.Event) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, event *models.Event) error {
	return s.repo.Create(ctx, event)
}

// IsEventProcessed treats an unknown event as not yet processed.
func (s *service) IsEventProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	event, err := s.repo.GetByID(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return event.Processed, nil
}

// MarkEventAsProcessed records the event first if this instance never saw it
// published.
func (s *service) MarkEventAsProcessed(ctx context.Context, event *models.Event) error {
	err := s.repo.MarkAsProcessed(ctx, event.ID)
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	recorded := *event
	recorded.Processed = true
	return s.repo.Create(ctx, &recorded)
}
