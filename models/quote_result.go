package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"bestoffer.kz/travel/models/enum"
)

// QuoteSuccess is the outcome of a provider call that returned offers.
type QuoteSuccess struct {
	Provider string           `json:"provider"`
	Company  InsuranceCompany `json:"insurance_company"`
	Country  json.RawMessage  `json:"country,omitempty"`
	Offers   []Offer          `json:"offers"`
}

// QuoteFailure is the outcome of a provider call that did not.
type QuoteFailure struct {
	Provider   string         `json:"provider"`
	Kind       enum.ErrorKind `json:"kind"`
	Message    string         `json:"message"`
	StatusCode int            `json:"status_code,omitempty"`
	Body       string         `json:"body,omitempty"`
}

// Aggregation holds one run's results in completion order.
type Aggregation struct {
	Successes []QuoteSuccess `json:"successes"`
	Failures  []QuoteFailure `json:"failures"`
}

// Usable reports whether at least one provider answered.
func (a *Aggregation) Usable() bool {
	return a != nil && len(a.Successes) > 0
}

// QuoteRun is a stored aggregation together with the request that produced it.
type QuoteRun struct {
	ID          uuid.UUID      `json:"id"`
	Request     QuoteRequest   `json:"request"`
	Successes   []QuoteSuccess `json:"successes"`
	Failures    []QuoteFailure `json:"failures"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

type QuoteRunStats struct {
	ProvidersTotal     int   `json:"providers_total"`
	ProvidersSucceeded int   `json:"providers_succeeded"`
	ProvidersFailed    int   `json:"providers_failed"`
	DurationMs         int64 `json:"duration_ms"`
}

func (r *QuoteRun) Stats() QuoteRunStats {
	return QuoteRunStats{
		ProvidersTotal:     len(r.Successes) + len(r.Failures),
		ProvidersSucceeded: len(r.Successes),
		ProvidersFailed:    len(r.Failures),
		DurationMs:         r.CompletedAt.Sub(r.StartedAt).Milliseconds(),
	}
}
