package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

// SubmitOrder sends one order and returns the provider's raw confirmation
// body.
// It never retries. A 422 becomes *models.OrderValidationError, anything
// else that is not 2xx becomes *models.OrderTransportError.
func (c *Client) SubmitOrder(ctx context.Context, endpoint models.ProviderEndpoint, payload models.OrderPayload, timeout time.Duration) ([]byte, error) {

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &models.OrderTransportError{Kind: enum.ErrorKindUnexpected, Err: fmt.Errorf("failed to encode order: %w", err)}
	}

	status, respBody, err := c.post(ctx, endpoint.URL, body, timeout)
	if err != nil {
		kind := Classify(err)
		c.logger.Error("order submission failed",
			zap.String("provider", endpoint.Name),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, &models.OrderTransportError{Kind: kind, Err: err}
	}

	switch {
	case status >= 200 && status <= 299:
		c.logger.Info("order accepted", zap.String("provider", endpoint.Name), zap.Int("status", status))
		if len(bytes.TrimSpace(respBody)) == 0 {
			return []byte("{}"), nil
		}
		return respBody, nil

	case status == http.StatusUnprocessableEntity:
		c.logger.Info("order rejected by provider", zap.String("provider", endpoint.Name))
		return nil, ParseOrderValidation(status, respBody)

	default:
		c.logger.Error("order submission returned error status",
			zap.String("provider", endpoint.Name),
			zap.Int("status", status))
		return nil, &models.OrderTransportError{
			Kind:       enum.ErrorKindProtocolError,
			StatusCode: status,
			Body:       string(respBody),
		}
	}
}

// errorEnvelope covers the two error body styles seen from providers:
// {"message": "...", "errors": {"field": ["msg"]}} and
// {"detail": [{"loc": ["body", "field"], "msg": "..."}]}.
type errorEnvelope struct {
	Message string                     `json:"message"`
	Errors  map[string]json.RawMessage `json:"errors"`
	Detail  json.RawMessage            `json:"detail"`
}

type detailItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// ParseOrderValidation builds the field-level error from a 422 body. An
// unrecognized body still yields an error, with the raw text as message.
func ParseOrderValidation(status int, body []byte) *models.OrderValidationError {
	verr := &models.OrderValidationError{
		StatusCode: status,
		Fields:     make(map[string][]string),
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		verr.Message = strings.TrimSpace(string(body))
		return verr
	}

	verr.Message = envelope.Message

	for field, raw := range envelope.Errors {
		verr.Fields[field] = append(verr.Fields[field], decodeMessages(raw)...)
	}

	detail := bytes.TrimSpace(envelope.Detail)
	if len(detail) > 0 {
		switch detail[0] {
		case '"':
			var msg string
			if err := json.Unmarshal(detail, &msg); err == nil && verr.Message == "" {
				verr.Message = msg
			}
		case '[':
			var items []detailItem
			if err := json.Unmarshal(detail, &items); err == nil {
				for _, item := range items {
					field := locPath(item.Loc)
					verr.Fields[field] = append(verr.Fields[field], item.Msg)
				}
			}
		}
	}

	return verr
}

func decodeMessages(raw []byte) []string {
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	return []string{strings.TrimSpace(string(raw))}
}

// locPath joins a validation location, dropping the leading "body" segment.
func locPath(loc []any) string {
	parts := make([]string, 0, len(loc))
	for i, segment := range loc {
		s := fmt.Sprint(segment)
		if i == 0 && s == "body" {
			continue
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "_"
	}
	return strings.Join(parts, ".")
}
