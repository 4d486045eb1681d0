//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	travel "bestoffer.kz/travel"
	"bestoffer.kz/travel/config"
	"bestoffer.kz/travel/customer"
	"bestoffer.kz/travel/driver"
	"bestoffer.kz/travel/event"
	"bestoffer.kz/travel/handlers"
	"bestoffer.kz/travel/order"
	"bestoffer.kz/travel/payment_intent"
	"bestoffer.kz/travel/provider"
	"bestoffer.kz/travel/quote"
	"bestoffer.kz/travel/server"
)

func InitializeServer() (*server.Server, error) {

	wire.Build(
		config.ProvideApplicationConfig,
		config.NewLogger,
		config.ProvidePostgresConn,
		config.ProvideRedis,
		config.ProvideNats,
		config.ProvideHTTPClient,
		config.ProvideStripeClient,
		driver.NewTransactionManager,
		wire.Bind(new(driver.Transactor), new(*driver.TransactionManager)),
		ProvideProviderClient,
		wire.Bind(new(order.Submitter), new(*provider.Client)),
		ProvideAggregator,
		ProvideOrderSettings,
		order.NewRedisGuard,
		wire.Bind(new(order.Guard), new(*order.RedisGuard)),
		quote.NewRepository,
		quote.NewService,
		customer.NewRepository,
		order.NewRepository,
		order.NewService,
		payment_intent.NewRepository,
		payment_intent.NewService,
		event.NewRepository,
		event.NewService,
		travel.ProvidePaymentIntentCreator,
		travel.NewBestOffer,
		handlers.NewQuoteHandler,
		handlers.NewOrderHandler,
		handlers.NewCatalogHandler,
		handlers.NewWebhookHandler,
		server.NewHealthServer,
		server.NewServer,
	)

	return &server.Server{}, nil
}
