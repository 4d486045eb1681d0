package travel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"bestoffer.kz/travel/config"
	"bestoffer.kz/travel/event"
	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
	"bestoffer.kz/travel/order"
	"bestoffer.kz/travel/payment_intent"
	"bestoffer.kz/travel/quote"
	"bestoffer.kz/travel/request"
)

// PaymentIntentCreator is the part of the Stripe API used to charge an
// order.
type PaymentIntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func ProvidePaymentIntentCreator(api *client.API) PaymentIntentCreator {
	return api.PaymentIntents
}

// quoteValidity bounds how old a quote run may be when an order is placed
// from it.
const quoteValidity = 24 * time.Hour

type BestOffer struct {
	aggregator    *Aggregator
	providers     []models.ProviderEndpoint
	stripe        PaymentIntentCreator
	webhookSecret string
	payGuard      order.Guard
	payGuardTTL   time.Duration
	eventManager  *EventManager
	dispatcher    *Dispatcher
	logger        *zap.Logger

	quote         quote.Service
	order         order.Service
	paymentIntent payment_intent.Service
	event         event.Service
}

func NewBestOffer(cfg *config.Config,
	aggregator *Aggregator,
	qs quote.Service,
	ors order.Service,
	pis payment_intent.Service,
	es event.Service,
	stripeClient PaymentIntentCreator,
	guard order.Guard,
	nc *nats.Conn,
	logger *zap.Logger) (Travel, error) {

	bo := &BestOffer{
		aggregator:    aggregator,
		providers:     slices.Clone(cfg.Quotes.Providers),
		stripe:        stripeClient,
		webhookSecret: cfg.Stripe.WebhookSecret,
		payGuard:      guard,
		payGuardTTL:   cfg.Order.InFlightTTL,
		logger:        logger,
		quote:         qs,
		order:         ors,
		paymentIntent: pis,
		event:         es,
	}

	bo.eventManager = NewEventManager(nc, logger)
	bo.dispatcher = NewDispatcher(cfg.Events.Workers, cfg.Events.QueueSize, bo.ProcessEvent, logger)

	bo.registerEventHandlers()
	bo.dispatcher.Run()
	if err := bo.eventManager.SubscribeToEvents(bo.dispatcher); err != nil {
		bo.dispatcher.Stop()
		return nil, err
	}

	return bo, nil
}

func (bo *BestOffer) GetPrices(ctx context.Context, form models.QuoteForm) (*models.QuoteRun, error) {

	req, err := request.Build(form)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	aggregation, aggErr := bo.aggregator.Aggregate(ctx, req, bo.providers)
	if aggregation == nil {
		return nil, aggErr
	}

	run := &models.QuoteRun{
		ID:          uuid.New(),
		Request:     req,
		Successes:   aggregation.Successes,
		Failures:    aggregation.Failures,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}

	bo.publish(ctx, enum.EventTypeQuoteRunCompleted, run)

	return run, aggErr
}

func (bo *BestOffer) GetQuoteRun(ctx context.Context, id uuid.UUID) (*models.QuoteRun, error) {
	return bo.quote.GetByID(ctx, id)
}

func (bo *BestOffer) SubmitOrder(ctx context.Context, key string, req models.OrderRequest) (*models.Order, error) {

	if err := request.ValidateStruct(req); err != nil {
		return nil, err
	}

	offer, err := bo.quotedOffer(ctx, req)
	if err != nil {
		return nil, err
	}

	placed, err := bo.order.Submit(ctx, key, req.Order, offer)
	if placed == nil {
		return nil, err
	}

	eventType := enum.EventTypeOrderSubmitted
	if placed.Status == enum.OrderStatusFailed {
		eventType = enum.EventTypeOrderFailed
	}
	bo.publish(ctx, eventType, orderEventOf(placed))

	return placed, err
}

// quotedOffer looks up the offer the user picked in the stored quote run, so
// the price always comes from a provider answer.
func (bo *BestOffer) quotedOffer(ctx context.Context, req models.OrderRequest) (models.Offer, error) {

	run, err := bo.quote.GetByID(ctx, req.RunID)
	if errors.Is(err, models.ErrNotFound) {
		verr := models.NewValidationError()
		verr.Add("run_id", "unknown quote run, request prices again")
		return models.Offer{}, verr
	}
	if err != nil {
		return models.Offer{}, err
	}

	verr := models.NewValidationError()
	if time.Since(run.CompletedAt) > quoteValidity {
		verr.Add("run_id", "quote run has expired, request prices again")
	}
	if start, err := models.ParseDate(req.Order.StartDate); err == nil && start != run.Request.StartDate {
		verr.Add("start_date", "does not match the quoted trip")
	}
	if end, err := models.ParseDate(req.Order.EndDate); err == nil && end != run.Request.EndDate {
		verr.Add("end_date", "does not match the quoted trip")
	}

	offer, found := findOffer(run, req.Provider, req.OfferID)
	if !found {
		verr.Add("offer_id", "offer not found in the quote run")
	}

	if verr.HasErrors() {
		return models.Offer{}, verr
	}
	return offer, nil
}

func findOffer(run *models.QuoteRun, provider string, offerID int64) (models.Offer, bool) {
	for _, success := range run.Successes {
		if success.Provider != provider {
			continue
		}
		for _, offer := range success.Offers {
			if offer.ExternalInfo.ID == offerID {
				return offer, true
			}
		}
	}
	return models.Offer{}, false
}

func (bo *BestOffer) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return bo.order.GetByID(ctx, id)
}

// PayOrder starts the Stripe payment for a submitted order. Calling it
// again while a payment is open returns the same intent.
func (bo *BestOffer) PayOrder(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {

	placed, err := bo.order.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if placed.Status != enum.OrderStatusSubmitted || placed.Premium <= 0 {
		return nil, fmt.Errorf("%w: status %s, premium %.2f", models.ErrOrderNotPayable, placed.Status, placed.Premium)
	}

	guardKey := "pay:" + id.String()
	acquired, err := bo.payGuard.Acquire(ctx, guardKey, bo.payGuardTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, models.ErrPaymentInFlight
	}
	defer func() {
		if err := bo.payGuard.Release(context.WithoutCancel(ctx), guardKey); err != nil {
			bo.logger.Error("failed to release payment guard", zap.String("order_id", id.String()), zap.Error(err))
		}
	}()

	open, err := bo.paymentIntent.GetOpenByOrderID(ctx, id)
	if err == nil {
		return open, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// a failed or canceled intent moves the key on, so a new attempt gets a
	// fresh intent while retries of the same attempt reuse Stripe's
	attempt, err := bo.paymentIntent.Attempts(ctx, id)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(placed.Currency)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(placed.Premium, currency)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{"order_id": id.String()},
	}
	params.SetIdempotencyKey(fmt.Sprintf("order-pay-%s-%d", id, attempt))

	stripeIntent, err := bo.stripe.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe payment intent: %w", err)
	}

	now := time.Now()
	paymentIntent := &models.PaymentIntent{
		ID:           uuid.New(),
		OrderID:      id,
		StripeID:     stripeIntent.ID,
		Amount:       stripeIntent.Amount,
		Currency:     string(stripeIntent.Currency),
		Status:       enum.PaymentIntentStatus(stripeIntent.Status),
		ClientSecret: stripeIntent.ClientSecret,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = bo.paymentIntent.Create(ctx, paymentIntent); err != nil {
		return nil, fmt.Errorf("failed to create local payment intent record: %w", err)
	}

	bo.logger.Info("payment intent created",
		zap.String("order_id", id.String()),
		zap.String("stripe_id", paymentIntent.StripeID))

	return paymentIntent, nil
}

// HandleStripeWebhook verifies and applies a Stripe event. Events for
// payment intents this service did not create are ignored.
func (bo *BestOffer) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, bo.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidWebhook, err)
	}

	ledgerID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("stripe:"+stripeEvent.ID))
	processed, err := bo.event.IsEventProcessed(ctx, ledgerID)
	if err != nil {
		return err
	}
	if processed {
		bo.logger.Info("stripe event already processed", zap.String("event_id", stripeEvent.ID))
		return nil
	}

	if err = bo.applyStripeEvent(ctx, &stripeEvent); err != nil {
		return err
	}

	return bo.event.MarkEventAsProcessed(ctx, &models.Event{
		ID:        ledgerID,
		Type:      enum.EventType("stripe." + string(stripeEvent.Type)),
		Payload:   payload,
		Processed: true,
		CreatedAt: time.Now(),
	})
}

func (bo *BestOffer) applyStripeEvent(ctx context.Context, stripeEvent *stripe.Event) error {

	var transition func(context.Context, string) (*models.PaymentIntent, error)
	switch stripeEvent.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		transition = bo.paymentIntent.Confirm
	case stripe.EventTypePaymentIntentPaymentFailed:
		transition = bo.paymentIntent.Failed
	case stripe.EventTypePaymentIntentCanceled:
		transition = bo.paymentIntent.Cancel
	default:
		bo.logger.Debug("ignoring stripe event", zap.String("event_type", string(stripeEvent.Type)))
		return nil
	}

	var stripeIntent stripe.PaymentIntent
	if err := json.Unmarshal(stripeEvent.Data.Raw, &stripeIntent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	paymentIntent, err := transition(ctx, stripeIntent.ID)
	if errors.Is(err, models.ErrNotFound) {
		bo.logger.Warn("stripe event for unknown payment intent", zap.String("stripe_id", stripeIntent.ID))
		return nil
	}
	if err != nil {
		return err
	}

	if paymentIntent.Status != enum.PaymentIntentStatusSucceeded {
		return nil
	}

	if err = bo.order.MarkPaid(ctx, paymentIntent.OrderID); err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	paid, err := bo.order.GetByID(ctx, paymentIntent.OrderID)
	if err != nil {
		return err
	}
	bo.publish(ctx, enum.EventTypeOrderPaid, orderEventOf(paid))

	return nil
}

func (bo *BestOffer) Countries() []string {
	return slices.Clone(models.Countries)
}

func (bo *BestOffer) Providers() []models.ProviderEndpoint {
	return slices.Clone(bo.providers)
}

// ProcessEvent runs the registered handler for event at most once per
// event ID.
func (bo *BestOffer) ProcessEvent(ctx context.Context, event *models.Event) error {

	processed, err := bo.event.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check event ledger: %w", err)
	}
	if processed {
		bo.logger.Debug("event already processed", zap.String("event_id", event.ID.String()))
		return nil
	}

	handler, exists := bo.eventManager.GetHandler(event.Type)
	if !exists {
		return fmt.Errorf("no handler registered for event type: %s", event.Type)
	}

	if err = handler(ctx, event); err != nil {
		return err
	}

	if err = bo.event.MarkEventAsProcessed(ctx, event); err != nil {
		bo.logger.Error("failed to mark event as processed", zap.String("event_id", event.ID.String()), zap.Error(err))
		return err
	}

	return nil
}

func (bo *BestOffer) handleQuoteRunCompleted(ctx context.Context, event *models.Event) error {
	var run models.QuoteRun
	if err := json.Unmarshal(event.Payload, &run); err != nil {
		return fmt.Errorf("failed to unmarshal quote run: %w", err)
	}

	if err := bo.quote.Record(ctx, &run); err != nil {
		return fmt.Errorf("failed to record quote run: %w", err)
	}

	stats := run.Stats()
	bo.logger.Info("quote run recorded",
		zap.String("run_id", run.ID.String()),
		zap.Int("succeeded", stats.ProvidersSucceeded),
		zap.Int("failed", stats.ProvidersFailed),
		zap.Int64("duration_ms", stats.DurationMs))

	return nil
}

func (bo *BestOffer) handleOrderEvent(_ context.Context, event *models.Event) error {
	var oe orderEvent
	if err := json.Unmarshal(event.Payload, &oe); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}

	bo.logger.Info("order event",
		zap.String("event_type", string(event.Type)),
		zap.String("order_id", oe.OrderID.String()),
		zap.String("provider", oe.Provider),
		zap.String("status", string(oe.Status)),
		zap.String("failure_reason", oe.FailureReason))

	return nil
}

// publish records the event and hands it to the event transport. Failures
// are logged; callers have already done their work.
func (bo *BestOffer) publish(ctx context.Context, eventType enum.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		bo.logger.Error("failed to marshal event payload", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}

	event := &models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err = bo.event.Create(ctx, event); err != nil {
		bo.logger.Warn("failed to record event", zap.String("event_id", event.ID.String()), zap.Error(err))
	}

	if err = bo.eventManager.PublishEvent(ctx, event); err != nil {
		bo.logger.Error("failed to publish event",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (bo *BestOffer) Close() {
	bo.logger.Info("shutting down event processing")
	bo.eventManager.Close()
	bo.dispatcher.Stop()
	bo.logger.Info("event processing stopped")
}

// orderEvent is the event body for order.*; it leaves out personal data.
type orderEvent struct {
	OrderID       uuid.UUID        `json:"order_id"`
	Provider      string           `json:"provider"`
	Status        enum.OrderStatus `json:"status"`
	Premium       float64          `json:"premium"`
	Currency      string           `json:"currency"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

func orderEventOf(o *models.Order) orderEvent {
	return orderEvent{
		OrderID:       o.ID,
		Provider:      o.Provider,
		Status:        o.Status,
		Premium:       o.Premium,
		Currency:      o.Currency,
		FailureReason: o.FailureReason,
	}
}

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// minorUnits converts an amount to the smallest unit Stripe charges in.
func minorUnits(amount float64, currency string) int64 {
	if zeroDecimalCurrencies[currency] {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}
