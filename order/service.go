// Package order submits confirmed purchases to the order provider and keeps
// the local record of every submission.
package order

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"bestoffer.kz/travel/customer"
	"bestoffer.kz/travel/driver"
	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
	"bestoffer.kz/travel/request"
)

// Submitter sends an order to a provider. It is satisfied by
// *provider.Client.
type Submitter interface {
	SubmitOrder(ctx context.Context, endpoint models.ProviderEndpoint, payload models.OrderPayload, timeout time.Duration) ([]byte, error)
}

type Service interface {
	// Submit makes exactly one provider call for a valid order priced at
	// offer. A concurrent Submit with the same key fails with
	// models.ErrOrderInFlight without calling the provider. An empty key is
	// derived from the payload.
	Submit(ctx context.Context, key string, payload models.OrderPayload, offer models.Offer) (*models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID) error
}

type Settings struct {
	Endpoint    models.ProviderEndpoint
	Timeout     time.Duration
	InFlightTTL time.Duration
	Currency    string
}

type service struct {
	repo               Repository
	customers          customer.Repository
	submitter          Submitter
	guard              Guard
	settings           Settings
	transactionManager driver.Transactor
	logger             *zap.Logger
}

func NewService(repo Repository, customers customer.Repository, submitter Submitter, guard Guard,
	settings Settings, tm driver.Transactor, logger *zap.Logger) Service {
	return &service{
		repo:               repo,
		customers:          customers,
		submitter:          submitter,
		guard:              guard,
		settings:           settings,
		transactionManager: tm,
		logger:             logger,
	}
}

func (s *service) Submit(ctx context.Context, key string, payload models.OrderPayload, offer models.Offer) (*models.Order, error) {

	payload, err := request.BuildOrder(payload)
	if err != nil {
		return nil, err
	}

	if key == "" {
		if key, err = PayloadKey(payload); err != nil {
			return nil, err
		}
	}

	acquired, err := s.guard.Acquire(ctx, key, s.settings.InFlightTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.logger.Info("order submission already in flight", zap.String("key", key))
		return nil, models.ErrOrderInFlight
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Error("failed to release order guard", zap.String("key", key), zap.Error(err))
		}
	}()

	confirmation, submitErr := s.submitter.SubmitOrder(ctx, s.settings.Endpoint, payload, s.settings.Timeout)

	now := time.Now()
	currency := offer.Currency
	if currency == "" {
		currency = s.settings.Currency
	}
	order := &models.Order{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Provider:       s.settings.Endpoint.Name,
		Status:         enum.OrderStatusSubmitted,
		Payload:        payload,
		Premium:        offer.Price(),
		Currency:       strings.ToUpper(currency),
		Confirmation:   confirmation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if submitErr != nil {
		order.Status = enum.OrderStatusFailed
		order.FailureReason = submitErr.Error()
	}

	// the provider has already answered; storage errors are only logged
	if err = s.save(context.WithoutCancel(ctx), order); err != nil {
		s.logger.Error("failed to store order",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(order.Status)),
			zap.Error(err))
	}

	if submitErr != nil {
		return order, submitErr
	}

	s.logger.Info("order submitted",
		zap.String("order_id", order.ID.String()),
		zap.String("provider", order.Provider))

	return order, nil
}

// save stores the customer and the order together.
func (s *service) save(ctx context.Context, order *models.Order) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		holder := models.NewCustomer().FromNomadCustomer(order.Payload.NomadCustomer)
		if err := s.customers.Upsert(ctx, tx, holder); err != nil {
			return err
		}
		order.CustomerID = holder.ID
		order.Customer = holder
		return s.repo.Create(ctx, tx, order)
	})
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		if order, err = s.repo.GetByID(ctx, tx, id); err != nil {
			return err
		}
		if order.CustomerID == 0 {
			return nil
		}
		order.Customer, err = s.customers.GetByID(ctx, tx, order.CustomerID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	})
	return order, err
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		order, err := s.repo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		switch order.Status {
		case enum.OrderStatusPaid:
			return nil
		case enum.OrderStatusSubmitted:
			return s.repo.UpdateStatus(ctx, tx, id, enum.OrderStatusPaid)
		default:
			return fmt.Errorf("order %s cannot be paid in status %s", id, order.Status)
		}
	})
}

// PayloadKey derives an in-flight key from the payload, so identical
// submissions without an explicit key still collide.
func PayloadKey(payload models.OrderPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode order payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
