// Package travel compares travel insurance prices across providers and
// places orders with the chosen one.
package travel

import (
	"context"

	"github.com/google/uuid"

	"bestoffer.kz/travel/models"
)

type Travel interface {
	// GetPrices validates form and asks every provider for prices. When no
	// provider answers, the run is returned together with
	// *models.AllProvidersFailedError.
	GetPrices(ctx context.Context, form models.QuoteForm) (*models.QuoteRun, error)
	GetQuoteRun(ctx context.Context, id uuid.UUID) (*models.QuoteRun, error)

	// SubmitOrder places the order at the price of the offer req picks from
	// a stored quote run.
	SubmitOrder(ctx context.Context, key string, req models.OrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	PayOrder(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) // Interacts with Stripe

	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error

	Countries() []string
	Providers() []models.ProviderEndpoint

	ProcessEvent(ctx context.Context, event *models.Event) error

	Close()
}
