package main

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	travel "bestoffer.kz/travel"
	"bestoffer.kz/travel/config"
	"bestoffer.kz/travel/models"
	"bestoffer.kz/travel/order"
	"bestoffer.kz/travel/provider"
)

func ProvideProviderClient(appConfig *config.Config, http *fasthttp.Client, logger *zap.Logger) *provider.Client {
	return provider.NewClient(http, appConfig.Quotes.Headers, logger)
}

func ProvideAggregator(appConfig *config.Config, client *provider.Client, logger *zap.Logger) *travel.Aggregator {
	return travel.NewAggregator(client, appConfig.Quotes.Timeout, logger)
}

func ProvideOrderSettings(appConfig *config.Config) order.Settings {
	return order.Settings{
		Endpoint: models.ProviderEndpoint{
			Name: appConfig.Order.Provider,
			URL:  appConfig.Order.URL,
		},
		Timeout:     appConfig.Order.Timeout,
		InFlightTTL: appConfig.Order.InFlightTTL,
		Currency:    strings.ToUpper(appConfig.Stripe.Currency),
	}
}
