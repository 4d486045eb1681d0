package travel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"bestoffer.kz/travel/config"
	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
	"bestoffer.kz/travel/order"
)

const testWebhookSecret = "whsec_test"

type fakeQuotes struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*models.QuoteRun
	recorded chan uuid.UUID
	stuck    chan struct{}
}

func (f *fakeQuotes) Record(_ context.Context, run *models.QuoteRun) error {
	if f.stuck != nil {
		<-f.stuck
	}
	f.mu.Lock()
	f.runs[run.ID] = run
	f.mu.Unlock()
	f.recorded <- run.ID
	return nil
}

func (f *fakeQuotes) GetByID(_ context.Context, id uuid.UUID) (*models.QuoteRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return run, nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
	submit func(payload models.OrderPayload, offer models.Offer) (*models.Order, error)
}

func (f *fakeOrders) Submit(_ context.Context, _ string, payload models.OrderPayload, offer models.Offer) (*models.Order, error) {
	placed, err := f.submit(payload, offer)
	if placed != nil {
		f.mu.Lock()
		f.orders[placed.ID] = placed
		f.mu.Unlock()
	}
	return placed, err
}

func (f *fakeOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	placed, ok := f.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	found := *placed
	return &found, nil
}

func (f *fakeOrders) MarkPaid(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	placed, ok := f.orders[id]
	if !ok {
		return models.ErrNotFound
	}
	placed.Status = enum.OrderStatusPaid
	return nil
}

type fakePaymentIntents struct {
	mu         sync.Mutex
	byStripeID map[string]*models.PaymentIntent
}

func (f *fakePaymentIntents) Create(_ context.Context, pi *models.PaymentIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byStripeID[pi.StripeID] = pi
	return nil
}

func (f *fakePaymentIntents) GetOpenByOrderID(_ context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pi := range f.byStripeID {
		if pi.OrderID == orderID && pi.Status != enum.PaymentIntentStatusCanceled && pi.Status != enum.PaymentIntentStatusFailed {
			return pi, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakePaymentIntents) Attempts(_ context.Context, orderID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, pi := range f.byStripeID {
		if pi.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (f *fakePaymentIntents) set(stripeID string, status enum.PaymentIntentStatus) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pi, ok := f.byStripeID[stripeID]
	if !ok {
		return nil, models.ErrNotFound
	}
	pi.Status = status
	return pi, nil
}

func (f *fakePaymentIntents) Confirm(_ context.Context, stripeID string) (*models.PaymentIntent, error) {
	return f.set(stripeID, enum.PaymentIntentStatusSucceeded)
}

func (f *fakePaymentIntents) Failed(_ context.Context, stripeID string) (*models.PaymentIntent, error) {
	return f.set(stripeID, enum.PaymentIntentStatusFailed)
}

func (f *fakePaymentIntents) Cancel(_ context.Context, stripeID string) (*models.PaymentIntent, error) {
	return f.set(stripeID, enum.PaymentIntentStatusCanceled)
}

type fakeLedger struct {
	mu     sync.Mutex
	events map[uuid.UUID]models.Event
}

func (f *fakeLedger) Create(_ context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = *event
	return nil
}

func (f *fakeLedger) IsEventProcessed(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id].Processed, nil
}

func (f *fakeLedger) MarkEventAsProcessed(_ context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	recorded := *event
	recorded.Processed = true
	f.events[event.ID] = recorded
	return nil
}

func (f *fakeLedger) types() map[enum.EventType]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[enum.EventType]int)
	for _, e := range f.events {
		out[e.Type]++
	}
	return out
}

type fakeStripe struct {
	mu     sync.Mutex
	delay  time.Duration
	calls  int
	params *stripe.PaymentIntentParams
}

func (f *fakeStripe) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = params
	return &stripe.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", f.calls),
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "secret",
	}, nil
}

type fixture struct {
	travel         Travel
	quotes         *fakeQuotes
	orders         *fakeOrders
	paymentIntents *fakePaymentIntents
	ledger         *fakeLedger
	stripe         *fakeStripe
	caller         *fakeCaller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithEvents(t, config.EventsConfig{Workers: 2, QueueSize: 16}, nil)
}

// newFixtureWithEvents lets a test size the event queue; a non-nil stuck
// channel holds every quote run recording until it is closed.
func newFixtureWithEvents(t *testing.T, events config.EventsConfig, stuck chan struct{}) *fixture {
	t.Helper()

	f := &fixture{
		quotes: &fakeQuotes{
			runs:     make(map[uuid.UUID]*models.QuoteRun),
			recorded: make(chan uuid.UUID, 16),
			stuck:    stuck,
		},
		orders:         &fakeOrders{orders: make(map[uuid.UUID]*models.Order)},
		paymentIntents: &fakePaymentIntents{byStripeID: make(map[string]*models.PaymentIntent)},
		ledger:         &fakeLedger{events: make(map[uuid.UUID]models.Event)},
		stripe:         &fakeStripe{},
		caller:         newFakeCaller(),
	}

	cfg := &config.Config{
		Quotes: config.QuotesConfig{
			Timeout:   time.Second,
			Providers: endpoints("amanat", "asko"),
		},
		Order:  config.OrderConfig{InFlightTTL: time.Minute},
		Stripe: config.StripeConfig{WebhookSecret: testWebhookSecret},
		Events: events,
	}

	travel, err := NewBestOffer(cfg,
		NewAggregator(f.caller, cfg.Quotes.Timeout, zap.NewNop()),
		f.quotes, f.orders, f.paymentIntents, f.ledger, f.stripe, order.NewMemoryGuard(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(travel.Close)
	if stuck != nil {
		// runs before Close, which waits for the stuck recording
		t.Cleanup(func() { close(stuck) })
	}
	f.travel = travel

	return f
}

func validForm() models.QuoteForm {
	return models.QuoteForm{Age: "30", Country: "Турция", StartDate: "2024-05-01", EndDate: "2024-05-10"}
}

func TestGetPricesRecordsRun(t *testing.T) {
	f := newFixture(t)
	f.caller.succeed("amanat", 2)
	f.caller.fail("asko", enum.ErrorKindTimeout, 0)

	run, err := f.travel.GetPrices(context.Background(), validForm())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(run.Successes) != 1 || len(run.Failures) != 1 {
		t.Fatalf("unexpected run %+v", run)
	}

	select {
	case id := <-f.quotes.recorded:
		if id != run.ID {
			t.Fatalf("expected run %s to be recorded, got %s", run.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected quote run to be recorded")
	}

	stored, err := f.travel.GetQuoteRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("expected stored run, got %v", err)
	}
	if stored.Request != run.Request || len(stored.Successes[0].Offers) != 2 {
		t.Fatalf("stored run differs: %+v", stored)
	}
}

func TestGetPricesDoesNotWaitForHistory(t *testing.T) {
	stuck := make(chan struct{})
	f := newFixtureWithEvents(t, config.EventsConfig{Workers: 1, QueueSize: 1}, stuck)
	f.caller.succeed("amanat", 1)
	f.caller.succeed("asko", 1)

	for i := 0; i < 5; i++ {
		done := make(chan error, 1)
		go func() {
			_, err := f.travel.GetPrices(context.Background(), validForm())
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("call %d: expected no error, got %v", i+1, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("call %d: blocked on the event queue", i+1)
		}
	}
}

func TestGetPricesValidation(t *testing.T) {
	f := newFixture(t)

	form := validForm()
	form.Age = "abc"
	_, err := f.travel.GetPrices(context.Background(), form)

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["age"]; !ok {
		t.Fatalf("expected age to be reported, got %v", verr.Fields)
	}
	if len(f.caller.calls) != 0 {
		t.Fatalf("expected no provider calls, got %v", f.caller.calls)
	}
}

func TestGetPricesAllFailed(t *testing.T) {
	f := newFixture(t)
	f.caller.fail("amanat", enum.ErrorKindTransport, 0)
	f.caller.fail("asko", enum.ErrorKindProtocolError, 500)

	run, err := f.travel.GetPrices(context.Background(), validForm())
	if !models.IsAllProvidersFailed(err) {
		t.Fatalf("expected all providers failed, got %v", err)
	}
	if run == nil || len(run.Failures) != 2 {
		t.Fatalf("expected run with two failures, got %+v", run)
	}
}

func TestProcessEventRunsOnce(t *testing.T) {
	f := newFixture(t)
	bo := f.travel.(*BestOffer)

	event := &models.Event{
		ID:      uuid.New(),
		Type:    enum.EventTypeQuoteRunCompleted,
		Payload: []byte(`{"id":"` + uuid.NewString() + `","request":{"age":30,"country":"Турция","start_date":"2024-05-01","end_date":"2024-05-10"}}`),
	}

	for i := 0; i < 2; i++ {
		if err := bo.ProcessEvent(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	if n := len(f.quotes.recorded); n != 1 {
		t.Fatalf("expected quote run recorded once, got %d", n)
	}

	if err := bo.ProcessEvent(context.Background(), &models.Event{ID: uuid.New(), Type: "unknown"}); err == nil {
		t.Fatal("expected error for unregistered event type")
	}
}

func tripPayload() models.OrderPayload {
	return models.OrderPayload{
		CountryID:      12,
		InsuranceSumID: 3,
		StartDate:      "2024-05-01",
		EndDate:        "2024-05-10",
	}
}

// quotedRequest stores a quote run in which amanat offers id 7 at price
// and returns an order request picking that offer.
func (f *fixture) quotedRequest(price float64) models.OrderRequest {
	run := &models.QuoteRun{
		ID:      uuid.New(),
		Request: sampleRequest(),
		Successes: []models.QuoteSuccess{{
			Provider: "amanat",
			Offers: []models.Offer{
				{Value: 30000, Currency: "kzt", Premium: 9000, ExternalInfo: models.ExternalInfo{ID: 3}},
				{Value: 50000, Currency: "kzt", Premium: price, ExternalInfo: models.ExternalInfo{ID: 7}},
			},
		}},
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
	}

	f.quotes.mu.Lock()
	f.quotes.runs[run.ID] = run
	f.quotes.mu.Unlock()

	return models.OrderRequest{Order: tripPayload(), RunID: run.ID, Provider: "amanat", OfferID: 7}
}

func submittedOrder(payload models.OrderPayload, offer models.Offer) (*models.Order, error) {
	return &models.Order{
		ID:       uuid.New(),
		Provider: "nomad",
		Status:   enum.OrderStatusSubmitted,
		Payload:  payload,
		Premium:  offer.Price(),
		Currency: strings.ToUpper(offer.Currency),
	}, nil
}

func TestSubmitOrderPublishes(t *testing.T) {
	f := newFixture(t)
	f.orders.submit = submittedOrder

	t.Run("submitted", func(t *testing.T) {
		if _, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100)); err != nil {
			t.Fatal(err)
		}
		eventually(t, func() bool { return f.ledger.types()[enum.EventTypeOrderSubmitted] == 1 })
	})

	t.Run("failed order is still reported", func(t *testing.T) {
		rejection := &models.OrderValidationError{StatusCode: 422, Message: "expired"}
		f.orders.submit = func(models.OrderPayload, models.Offer) (*models.Order, error) {
			return &models.Order{ID: uuid.New(), Status: enum.OrderStatusFailed, FailureReason: rejection.Error()}, rejection
		}
		placed, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100))
		if !models.IsOrderValidation(err) || placed == nil {
			t.Fatalf("expected failed order with validation error, got %v, %v", placed, err)
		}
		eventually(t, func() bool { return f.ledger.types()[enum.EventTypeOrderFailed] == 1 })
	})

	t.Run("in flight publishes nothing", func(t *testing.T) {
		f.orders.submit = func(models.OrderPayload, models.Offer) (*models.Order, error) { return nil, models.ErrOrderInFlight }
		before := len(f.ledger.types())
		if _, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100)); !errors.Is(err, models.ErrOrderInFlight) {
			t.Fatalf("expected ErrOrderInFlight, got %v", err)
		}
		if after := len(f.ledger.types()); after != before {
			t.Fatalf("expected no new events, got %d types after %d", after, before)
		}
	})
}

func TestSubmitOrderPriceComesFromQuote(t *testing.T) {
	f := newFixture(t)

	var submitted []models.Offer
	f.orders.submit = func(payload models.OrderPayload, offer models.Offer) (*models.Order, error) {
		submitted = append(submitted, offer)
		return submittedOrder(payload, offer)
	}

	t.Run("stored offer is charged", func(t *testing.T) {
		placed, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if placed.Premium != 4100 || placed.Currency != "KZT" {
			t.Fatalf("expected the quoted 4100 KZT, got %v %s", placed.Premium, placed.Currency)
		}
	})

	rejected := []struct {
		name  string
		edit  func(*models.OrderRequest)
		field string
	}{
		{"unknown run", func(r *models.OrderRequest) { r.RunID = uuid.New() }, "run_id"},
		{"offer not in run", func(r *models.OrderRequest) { r.OfferID = 99 }, "offer_id"},
		{"offer from another provider", func(r *models.OrderRequest) { r.Provider = "asko" }, "offer_id"},
		{"different trip dates", func(r *models.OrderRequest) { r.Order.StartDate = "2024-04-01" }, "start_date"},
		{"missing run id", func(r *models.OrderRequest) { r.RunID = uuid.Nil }, "run_id"},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			before := len(submitted)
			req := f.quotedRequest(4100)
			tc.edit(&req)

			_, err := f.travel.SubmitOrder(context.Background(), "", req)
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected %s to be reported, got %v", tc.field, verr.Fields)
			}
			if len(submitted) != before {
				t.Fatal("expected the order not to reach the provider")
			}
		})
	}

	t.Run("expired run", func(t *testing.T) {
		req := f.quotedRequest(4100)
		f.quotes.mu.Lock()
		f.quotes.runs[req.RunID].CompletedAt = time.Now().Add(-48 * time.Hour)
		f.quotes.mu.Unlock()

		if _, err := f.travel.SubmitOrder(context.Background(), "", req); !models.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestPayOrder(t *testing.T) {
	f := newFixture(t)
	f.orders.submit = submittedOrder
	placed, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100.5))
	if err != nil {
		t.Fatal(err)
	}

	pi, err := f.travel.PayOrder(context.Background(), placed.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pi.Amount != 410050 || pi.Currency != "kzt" || pi.OrderID != placed.ID {
		t.Fatalf("unexpected payment intent %+v", pi)
	}
	if got := f.stripe.params.Metadata["order_id"]; got != placed.ID.String() {
		t.Fatalf("expected order id metadata, got %q", got)
	}
	if key := f.stripe.params.IdempotencyKey; key == nil || *key != "order-pay-"+placed.ID.String()+"-0" {
		t.Fatalf("expected idempotency key for the first attempt, got %v", key)
	}

	again, err := f.travel.PayOrder(context.Background(), placed.ID)
	if err != nil || again.StripeID != pi.StripeID {
		t.Fatalf("expected the open intent to be reused, got %+v (%v)", again, err)
	}
	if f.stripe.calls != 1 {
		t.Fatalf("expected one Stripe call, got %d", f.stripe.calls)
	}

	t.Run("zero premium is not payable", func(t *testing.T) {
		free, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(0))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.travel.PayOrder(context.Background(), free.ID); !errors.Is(err, models.ErrOrderNotPayable) {
			t.Fatalf("expected ErrOrderNotPayable, got %v", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		if _, err := f.travel.PayOrder(context.Background(), uuid.New()); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPayOrderConcurrent(t *testing.T) {
	f := newFixture(t)
	f.orders.submit = submittedOrder
	f.stripe.delay = 50 * time.Millisecond

	placed, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100))
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		results = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.travel.PayOrder(context.Background(), placed.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range results {
		if err != nil && !errors.Is(err, models.ErrPaymentInFlight) {
			t.Fatalf("expected success or ErrPaymentInFlight, got %v", err)
		}
	}
	if f.stripe.calls != 1 {
		t.Fatalf("expected one Stripe intent for the order, got %d", f.stripe.calls)
	}

	// once the first call is done the open intent is returned
	pi, err := f.travel.PayOrder(context.Background(), placed.ID)
	if err != nil || pi.OrderID != placed.ID {
		t.Fatalf("expected the open intent, got %+v (%v)", pi, err)
	}
	if f.stripe.calls != 1 {
		t.Fatalf("expected no further Stripe calls, got %d", f.stripe.calls)
	}
}

func TestPayOrderAfterFailedAttempt(t *testing.T) {
	f := newFixture(t)
	f.orders.submit = submittedOrder
	placed, err := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100))
	if err != nil {
		t.Fatal(err)
	}

	first, err := f.travel.PayOrder(context.Background(), placed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.paymentIntents.Failed(context.Background(), first.StripeID); err != nil {
		t.Fatal(err)
	}

	second, err := f.travel.PayOrder(context.Background(), placed.ID)
	if err != nil {
		t.Fatalf("expected a new intent, got %v", err)
	}
	if second.StripeID == first.StripeID {
		t.Fatal("expected a fresh intent after the failed one")
	}
	if key := f.stripe.params.IdempotencyKey; key == nil || *key != "order-pay-"+placed.ID.String()+"-1" {
		t.Fatalf("expected idempotency key for the second attempt, got %v", key)
	}
}

func TestHandleStripeWebhook(t *testing.T) {
	f := newFixture(t)
	f.orders.submit = submittedOrder
	placed, _ := f.travel.SubmitOrder(context.Background(), "", f.quotedRequest(4100))
	pi, err := f.travel.PayOrder(context.Background(), placed.ID)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"api_version": "2020-08-27",
		"data": {"object": {"id": %q, "object": "payment_intent", "status": "succeeded"}}
	}`, pi.StripeID))

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	for i := 0; i < 2; i++ {
		if err = f.travel.HandleStripeWebhook(context.Background(), signed.Payload, signed.Header); err != nil {
			t.Fatalf("delivery %d: expected no error, got %v", i+1, err)
		}
	}

	paid, _ := f.travel.GetOrder(context.Background(), placed.ID)
	if paid.Status != enum.OrderStatusPaid {
		t.Fatalf("expected order PAID, got %s", paid.Status)
	}
	eventually(t, func() bool { return f.ledger.types()[enum.EventTypeOrderPaid] == 1 })

	t.Run("bad signature", func(t *testing.T) {
		err := f.travel.HandleStripeWebhook(context.Background(), payload, "t=1,v1=deadbeef")
		if !errors.Is(err, models.ErrInvalidWebhook) {
			t.Fatalf("expected ErrInvalidWebhook, got %v", err)
		}
	})
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)

	countries := f.travel.Countries()
	if len(countries) != len(models.Countries) {
		t.Fatalf("expected %d countries, got %d", len(models.Countries), len(countries))
	}
	countries[0] = "changed"
	if models.Countries[0] == "changed" {
		t.Fatal("expected Countries to return a copy")
	}

	if providers := f.travel.Providers(); len(providers) != 2 || providers[0].Name != "amanat" {
		t.Fatalf("unexpected providers %+v", providers)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
