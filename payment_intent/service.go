package payment_intent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"bestoffer.kz/travel/driver"
	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

type Service interface {
	Create(ctx context.Context, paymentIntent *models.PaymentIntent) error
	GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
	// Attempts counts every intent ever created for the order, closed ones
	// included.
	Attempts(ctx context.Context, orderID uuid.UUID) (int, error)
	Confirm(ctx context.Context, stripeID string) (*models.PaymentIntent, error)
	Failed(ctx context.Context, stripeID string) (*models.PaymentIntent, error)
	Cancel(ctx context.Context, stripeID string) (*models.PaymentIntent, error)
}

type service struct {
	repo               Repository
	transactionManager driver.Transactor
	logger             *zap.Logger
}

func NewService(repo Repository, tm driver.Transactor, logger *zap.Logger) Service {
	return &service{
		repo:               repo,
		transactionManager: tm,
		logger:             logger,
	}
}

func (s *service) Create(ctx context.Context, paymentIntent *models.PaymentIntent) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return s.repo.Create(ctx, tx, paymentIntent)
	})
}

func (s *service) GetOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	var paymentIntent *models.PaymentIntent
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		paymentIntent, err = s.repo.GetOpenByOrderID(ctx, tx, orderID)
		return err
	})
	return paymentIntent, err
}

func (s *service) Attempts(ctx context.Context, orderID uuid.UUID) (int, error) {
	var count int
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		count, err = s.repo.CountByOrderID(ctx, tx, orderID)
		return err
	})
	return count, err
}

// Confirm is idempotent: confirming a succeeded intent changes nothing.
func (s *service) Confirm(ctx context.Context, stripeID string) (*models.PaymentIntent, error) {
	return s.transition(ctx, stripeID, enum.PaymentIntentStatusSucceeded, func(current enum.PaymentIntentStatus) bool {
		return current != enum.PaymentIntentStatusCanceled
	})
}

func (s *service) Failed(ctx context.Context, stripeID string) (*models.PaymentIntent, error) {
	return s.transition(ctx, stripeID, enum.PaymentIntentStatusFailed, func(current enum.PaymentIntentStatus) bool {
		return current != enum.PaymentIntentStatusSucceeded && current != enum.PaymentIntentStatusCanceled
	})
}

func (s *service) Cancel(ctx context.Context, stripeID string) (*models.PaymentIntent, error) {
	return s.transition(ctx, stripeID, enum.PaymentIntentStatusCanceled, func(current enum.PaymentIntentStatus) bool {
		return current != enum.PaymentIntentStatusSucceeded
	})
}

func (s *service) transition(ctx context.Context, stripeID string, to enum.PaymentIntentStatus, allowed func(enum.PaymentIntentStatus) bool) (*models.PaymentIntent, error) {
	var paymentIntent *models.PaymentIntent
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		paymentIntent, err = s.repo.GetByStripeID(ctx, tx, stripeID)
		if err != nil {
			return err
		}

		if paymentIntent.Status == to {
			return nil
		}
		if !allowed(paymentIntent.Status) {
			return fmt.Errorf("payment intent cannot move from %s to %s", paymentIntent.Status, to)
		}

		paymentIntent.Status = to
		return s.repo.UpdateStatus(ctx, tx, paymentIntent.ID, to)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment intent updated",
		zap.String("stripe_id", stripeID),
		zap.String("status", string(to)))

	return paymentIntent, nil
}
