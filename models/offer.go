package models

import "github.com/goccy/go-json"

// Offer is one priced coverage option, returned verbatim by a provider.
type Offer struct {
	Value             float64      `json:"value"`
	Currency          string       `json:"currency"`
	Premium           float64      `json:"premium"`
	DiscountedPremium float64      `json:"discounted_premium"`
	ExternalInfo      ExternalInfo `json:"external_info"`
}

// Price is what the customer pays: the discounted premium when the
// provider quoted one.
func (o Offer) Price() float64 {
	if o.DiscountedPremium > 0 && o.DiscountedPremium < o.Premium {
		return o.DiscountedPremium
	}
	return o.Premium
}

type ExternalInfo struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type InsuranceCompany struct {
	Name     string `json:"name"`
	MainPage string `json:"main_page"`
}

// ProviderResponse is the raw provider body. Results is left undecoded
// because providers disagree on its shape.
type ProviderResponse struct {
	InsuranceCompany InsuranceCompany `json:"insurance_company"`
	Country          json.RawMessage  `json:"country,omitempty"`
	Results          json.RawMessage  `json:"results"`
}
