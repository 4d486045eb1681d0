// Package provider talks to the insurers' HTTP APIs. It owns the wire
// format: every response is normalized here and every failure is classified
// here, so callers only ever see models types.
package provider

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/models/enum"
)

const contentTypeJSON = "application/json"

// Client is safe for concurrent use. Its header set is copied at
// construction and only read afterwards.
type Client struct {
	http    *fasthttp.Client
	headers map[string]string
	logger  *zap.Logger
}

func NewClient(http *fasthttp.Client, headers map[string]string, logger *zap.Logger) *Client {
	return &Client{
		http:    http,
		headers: maps.Clone(headers),
		logger:  logger,
	}
}

// Quote requests prices from one endpoint. Any failure is returned as a
// *models.ProviderError.
func (c *Client) Quote(ctx context.Context, endpoint models.ProviderEndpoint, req models.QuoteRequest, timeout time.Duration) (*models.QuoteSuccess, error) {

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &models.ProviderError{Provider: endpoint.Name, Kind: enum.ErrorKindUnexpected, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	started := time.Now()
	status, respBody, err := c.post(ctx, endpoint.URL, body, timeout)
	if err != nil {
		kind := Classify(err)
		c.logger.Warn("provider call failed",
			zap.String("provider", endpoint.Name),
			zap.String("kind", string(kind)),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return nil, &models.ProviderError{Provider: endpoint.Name, Kind: kind, Err: err}
	}

	if status < 200 || status > 299 {
		c.logger.Warn("provider responded with error status",
			zap.String("provider", endpoint.Name),
			zap.Int("status", status))
		return nil, &models.ProviderError{
			Provider:   endpoint.Name,
			Kind:       enum.ErrorKindProtocolError,
			StatusCode: status,
			Body:       string(respBody),
		}
	}

	var resp models.ProviderResponse
	if err = json.Unmarshal(respBody, &resp); err != nil {
		return nil, &models.ProviderError{Provider: endpoint.Name, Kind: enum.ErrorKindUnexpected, StatusCode: status, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	offers, err := NormalizeOffers(resp.Results)
	if err != nil {
		return nil, &models.ProviderError{Provider: endpoint.Name, Kind: enum.ErrorKindUnexpected, StatusCode: status, Err: err}
	}

	c.logger.Debug("provider call succeeded",
		zap.String("provider", endpoint.Name),
		zap.Int("offers", len(offers)),
		zap.Duration("elapsed", time.Since(started)))

	return &models.QuoteSuccess{
		Provider: endpoint.Name,
		Company:  resp.InsuranceCompany,
		Country:  resp.Country,
		Offers:   offers,
	}, nil
}

// post performs one POST bounded by timeout or ctx's deadline, whichever
// comes first. The returned body is a private copy.
func (c *Client) post(ctx context.Context, url string, body []byte, timeout time.Duration) (int, []byte, error) {

	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentTypeJSON)
	req.Header.Set(fasthttp.HeaderAccept, contentTypeJSON)
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.SetBody(body)

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}

	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}
