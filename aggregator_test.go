package travel

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

// fakeCaller answers from a per-endpoint script.
type fakeCaller struct {
	mu      sync.Mutex
	calls   map[string]int
	answers map[string]func(ctx context.Context, timeout time.Duration) (*models.QuoteSuccess, error)
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		calls:   make(map[string]int),
		answers: make(map[string]func(context.Context, time.Duration) (*models.QuoteSuccess, error)),
	}
}

func (f *fakeCaller) Quote(ctx context.Context, endpoint models.ProviderEndpoint, _ models.QuoteRequest, timeout time.Duration) (*models.QuoteSuccess, error) {
	f.mu.Lock()
	f.calls[endpoint.Name]++
	answer := f.answers[endpoint.Name]
	f.mu.Unlock()

	if answer == nil {
		return nil, &models.ProviderError{Provider: endpoint.Name, Kind: enum.ErrorKindUnexpected}
	}
	return answer(ctx, timeout)
}

func (f *fakeCaller) succeed(name string, offers int) {
	f.answers[name] = func(context.Context, time.Duration) (*models.QuoteSuccess, error) {
		success := &models.QuoteSuccess{Provider: name, Company: models.InsuranceCompany{Name: name}}
		for i := 0; i < offers; i++ {
			success.Offers = append(success.Offers, models.Offer{Value: float64(i + 1), Currency: "USD"})
		}
		return success, nil
	}
}

func (f *fakeCaller) fail(name string, kind enum.ErrorKind, status int) {
	f.answers[name] = func(context.Context, time.Duration) (*models.QuoteSuccess, error) {
		return nil, &models.ProviderError{Provider: name, Kind: kind, StatusCode: status}
	}
}

// hang blocks until the per-call timeout elapses, like a provider that never
// answers.
func (f *fakeCaller) hang(name string) {
	f.answers[name] = func(ctx context.Context, timeout time.Duration) (*models.QuoteSuccess, error) {
		select {
		case <-time.After(timeout):
		case <-ctx.Done():
		}
		return nil, &models.ProviderError{Provider: name, Kind: enum.ErrorKindTimeout}
	}
}

func endpoints(names ...string) []models.ProviderEndpoint {
	out := make([]models.ProviderEndpoint, 0, len(names))
	for _, name := range names {
		out = append(out, models.ProviderEndpoint{Name: name, URL: "https://bestoffer.kz/api/mst/" + name})
	}
	return out
}

func sampleRequest() models.QuoteRequest {
	return models.QuoteRequest{
		Age:       30,
		Country:   "Турция",
		StartDate: models.Date{Year: 2024, Month: time.May, Day: 1},
		EndDate:   models.Date{Year: 2024, Month: time.May, Day: 10},
	}
}

func TestAggregatePartialSuccess(t *testing.T) {
	caller := newFakeCaller()
	caller.succeed("amanat", 2)
	caller.fail("asko", enum.ErrorKindProtocolError, 503)
	caller.succeed("jusan", 1)

	agg := NewAggregator(caller, time.Second, zap.NewNop())
	result, err := agg.Aggregate(context.Background(), sampleRequest(), endpoints("amanat", "asko", "jusan"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(result.Successes) != 2 || len(result.Failures) != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %d and %d", len(result.Successes), len(result.Failures))
	}
	if !result.Usable() {
		t.Fatal("expected aggregation to be usable")
	}

	failure := result.Failures[0]
	if failure.Provider != "asko" || failure.Kind != enum.ErrorKindProtocolError || failure.StatusCode != 503 {
		t.Fatalf("unexpected failure %+v", failure)
	}

	for name, n := range caller.calls {
		if n != 1 {
			t.Fatalf("expected exactly one call to %s, got %d", name, n)
		}
	}
}

func TestAggregateTwoTimeoutsOneSuccess(t *testing.T) {
	caller := newFakeCaller()
	caller.hang("amanat")
	caller.succeed("asko", 3)
	caller.hang("jusan")

	result, err := NewAggregator(caller, 50*time.Millisecond, zap.NewNop()).
		Aggregate(context.Background(), sampleRequest(), endpoints("amanat", "asko", "jusan"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(result.Successes) != 1 || result.Successes[0].Provider != "asko" || len(result.Successes[0].Offers) != 3 {
		t.Fatalf("expected asko's three offers, got %+v", result.Successes)
	}

	got := make(map[string]enum.ErrorKind)
	for _, failure := range result.Failures {
		got[failure.Provider] = failure.Kind
	}
	want := map[string]enum.ErrorKind{"amanat": enum.ErrorKindTimeout, "jusan": enum.ErrorKindTimeout}
	if len(result.Failures) != 2 || !reflect.DeepEqual(got, want) {
		t.Fatalf("expected failures %v, got %+v", want, result.Failures)
	}
}

func TestAggregateAllSucceed(t *testing.T) {
	caller := newFakeCaller()
	names := []string{"amanat", "interteach", "asko", "freedom", "nomad", "jusan"}
	for _, name := range names {
		caller.succeed(name, 1)
	}

	result, err := NewAggregator(caller, time.Second, zap.NewNop()).
		Aggregate(context.Background(), sampleRequest(), endpoints(names...))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Successes) != len(names) || len(result.Failures) != 0 {
		t.Fatalf("expected %d successes, got %d (failures %d)", len(names), len(result.Successes), len(result.Failures))
	}

	seen := make(map[string]bool)
	for _, s := range result.Successes {
		if seen[s.Provider] {
			t.Fatalf("provider %s reported twice", s.Provider)
		}
		seen[s.Provider] = true
	}
}

func TestAggregateAllFailed(t *testing.T) {
	caller := newFakeCaller()
	caller.fail("amanat", enum.ErrorKindTransport, 0)
	caller.fail("asko", enum.ErrorKindProtocolError, 500)
	caller.hang("jusan")

	result, err := NewAggregator(caller, 20*time.Millisecond, zap.NewNop()).
		Aggregate(context.Background(), sampleRequest(), endpoints("amanat", "asko", "jusan"))

	var allFailed *models.AllProvidersFailedError
	if !errors.As(err, &allFailed) {
		t.Fatalf("expected *models.AllProvidersFailedError, got %v", err)
	}
	if len(allFailed.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(allFailed.Failures))
	}
	if result == nil || result.Usable() || len(result.Failures) != 3 {
		t.Fatalf("expected populated unusable aggregation, got %+v", result)
	}
}

func TestAggregateSlowProviderTimesOut(t *testing.T) {
	caller := newFakeCaller()
	caller.succeed("amanat", 3)
	caller.hang("interteach")
	caller.succeed("asko", 1)

	timeout := 50 * time.Millisecond
	started := time.Now()
	result, err := NewAggregator(caller, timeout, zap.NewNop()).
		Aggregate(context.Background(), sampleRequest(), endpoints("amanat", "interteach", "asko"))
	elapsed := time.Since(started)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Successes) != 2 {
		t.Fatalf("expected 2 successes, got %d", len(result.Successes))
	}
	if len(result.Failures) != 1 || result.Failures[0].Kind != enum.ErrorKindTimeout || result.Failures[0].Provider != "interteach" {
		t.Fatalf("expected interteach timeout, got %+v", result.Failures)
	}

	// the run lasts about one timeout, not one per provider
	if elapsed < timeout || elapsed > 20*timeout {
		t.Fatalf("expected run to take about %s, took %s", timeout, elapsed)
	}
}

func TestAggregateDispatchesConcurrently(t *testing.T) {
	names := []string{"amanat", "asko", "jusan"}
	var started sync.WaitGroup
	started.Add(len(names))

	caller := newFakeCaller()
	for _, name := range names {
		caller.answers[name] = func(context.Context, time.Duration) (*models.QuoteSuccess, error) {
			started.Done()
			// each call waits until every call has begun
			started.Wait()
			return &models.QuoteSuccess{Provider: name}, nil
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = NewAggregator(caller, time.Second, zap.NewNop()).
			Aggregate(context.Background(), sampleRequest(), endpoints(names...))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected all provider calls to be in flight at once")
	}
}

func TestAggregateDoesNotMutateInputs(t *testing.T) {
	caller := newFakeCaller()
	caller.succeed("amanat", 1)
	caller.fail("asko", enum.ErrorKindTransport, 0)

	eps := endpoints("amanat", "asko")
	epsCopy := append([]models.ProviderEndpoint(nil), eps...)
	req := sampleRequest()
	reqCopy := req

	if _, err := NewAggregator(caller, time.Second, zap.NewNop()).Aggregate(context.Background(), req, eps); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !reflect.DeepEqual(eps, epsCopy) {
		t.Fatalf("expected endpoints unchanged, got %+v", eps)
	}
	if req != reqCopy {
		t.Fatalf("expected request unchanged, got %+v", req)
	}
}

func TestAggregateNoEndpoints(t *testing.T) {
	_, err := NewAggregator(newFakeCaller(), time.Second, zap.NewNop()).
		Aggregate(context.Background(), sampleRequest(), nil)
	if !errors.Is(err, models.ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestAggregateWrapsUnclassifiedErrors(t *testing.T) {
	caller := newFakeCaller()
	caller.succeed("amanat", 1)
	caller.answers["asko"] = func(context.Context, time.Duration) (*models.QuoteSuccess, error) {
		return nil, errors.New("boom")
	}

	result, err := NewAggregator(caller, time.Second, zap.NewNop()).
		Aggregate(context.Background(), sampleRequest(), endpoints("amanat", "asko"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].Kind != enum.ErrorKindUnexpected || result.Failures[0].Provider != "asko" {
		t.Fatalf("expected asko unexpected failure, got %+v", result.Failures)
	}
}
