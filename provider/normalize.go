package provider

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"bestoffer.kz/travel/models"
)

// maxResultDepth allows Offer, []Offer and [][]Offer.
const maxResultDepth = 2

// NormalizeOffers flattens a provider's "results" field into one ordered
// slice, whatever nesting the provider used. A missing or null field yields
// an empty slice.
func NormalizeOffers(raw []byte) ([]models.Offer, error) {
	offers := make([]models.Offer, 0)
	if err := collectOffers(raw, 0, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func collectOffers(raw []byte, depth int, out *[]models.Offer) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '{':
		var offer models.Offer
		if err := json.Unmarshal(trimmed, &offer); err != nil {
			return fmt.Errorf("failed to decode offer: %w", err)
		}
		*out = append(*out, offer)
		return nil

	case '[':
		if depth >= maxResultDepth {
			return fmt.Errorf("results nested deeper than %d levels", maxResultDepth)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("failed to decode results: %w", err)
		}
		for _, item := range items {
			if err := collectOffers(item, depth+1, out); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unexpected results value starting with %q", trimmed[0])
	}
}
