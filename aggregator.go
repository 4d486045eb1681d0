package travel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

// QuoteCaller performs one provider call. Failures must be returned as
// *models.ProviderError; anything else is recorded as UNEXPECTED.
type QuoteCaller interface {
	Quote(ctx context.Context, endpoint models.ProviderEndpoint, req models.QuoteRequest, timeout time.Duration) (*models.QuoteSuccess, error)
}

// Aggregator fans a quote request out to every provider and waits for all of
// them.
type Aggregator struct {
	caller  QuoteCaller
	timeout time.Duration
	logger  *zap.Logger
}

func NewAggregator(caller QuoteCaller, timeout time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		caller:  caller,
		timeout: timeout,
		logger:  logger,
	}
}

// Aggregate returns once every endpoint has succeeded, failed or timed out.
// Results are in completion order. If nothing succeeded the populated
// aggregation is returned together with *models.AllProvidersFailedError.
func (a *Aggregator) Aggregate(ctx context.Context, req models.QuoteRequest, endpoints []models.ProviderEndpoint) (*models.Aggregation, error) {

	if len(endpoints) == 0 {
		return nil, models.ErrNoProviders
	}

	result := &models.Aggregation{
		Successes: make([]models.QuoteSuccess, 0, len(endpoints)),
		Failures:  make([]models.QuoteFailure, 0),
	}

	var (
		mu sync.Mutex
		// plain Group: a failed provider must not cancel the others
		g errgroup.Group
	)

	for _, endpoint := range endpoints {
		g.Go(func() error {
			success, err := a.caller.Quote(ctx, endpoint, req, a.timeout)

			mu.Lock()
			defer mu.Unlock()

			if err == nil && success == nil {
				err = fmt.Errorf("provider %s returned no result", endpoint.Name)
			}
			if err != nil {
				result.Failures = append(result.Failures, failureOf(endpoint, err))
				return nil
			}
			result.Successes = append(result.Successes, *success)
			return nil
		})
	}

	_ = g.Wait()

	a.logger.Info("quote aggregation finished",
		zap.Int("providers", len(endpoints)),
		zap.Int("succeeded", len(result.Successes)),
		zap.Int("failed", len(result.Failures)))

	if !result.Usable() {
		return result, &models.AllProvidersFailedError{Failures: result.Failures}
	}

	return result, nil
}

func failureOf(endpoint models.ProviderEndpoint, err error) models.QuoteFailure {
	var perr *models.ProviderError
	if errors.As(err, &perr) {
		failure := perr.Failure()
		if failure.Provider == "" {
			failure.Provider = endpoint.Name
		}
		return failure
	}
	return (&models.ProviderError{Provider: endpoint.Name, Kind: enum.ErrorKindUnexpected, Err: err}).Failure()
}
