package models

// QuoteForm is the raw trip query as the user typed it.
type QuoteForm struct {
	Age       string `json:"age"`
	Country   string `json:"country"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// QuoteRequest is the canonical payload sent to every provider. It is only
// built by request.Build and is passed by value.
type QuoteRequest struct {
	Age       int    `json:"age"`
	Country   string `json:"country"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
}

// ProviderEndpoint names one insurer's quote API.
type ProviderEndpoint struct {
	Name string `json:"name" mapstructure:"name"`
	URL  string `json:"url" mapstructure:"url"`
}
