package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	travel "bestoffer.kz/travel"
	"bestoffer.kz/travel/config"
	"bestoffer.kz/travel/handlers"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	echo    *echo.Echo
	health  *HealthServer
	config  *config.Config
	travel  travel.Travel
	logger  *zap.Logger
	Quote   handlers.QuoteHandler
	Order   handlers.OrderHandler
	Catalog handlers.CatalogHandler
	Webhook handlers.WebhookHandler
}

func NewServer(
	cfg *config.Config,
	Travel travel.Travel,
	health *HealthServer,
	Quote handlers.QuoteHandler,
	Order handlers.OrderHandler,
	Catalog handlers.CatalogHandler,
	Webhook handlers.WebhookHandler,
	logger *zap.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.ErrorHandler(logger)
	e.Validator = handlers.Validator{}

	s := &Server{
		echo:    e,
		health:  health,
		config:  cfg,
		travel:  Travel,
		logger:  logger,
		Quote:   Quote,
		Order:   Order,
		Catalog: Catalog,
		Webhook: Webhook,
	}
	s.registerMiddlewares()
	s.registerRoutes()
	return s
}

// Start listens on the configured HTTP address and blocks until the server
// stops.
func (s *Server) Start() error {
	return s.echo.Start(s.config.Server.Address)
}

// Run starts the HTTP and gRPC health servers and blocks until SIGINT or
// SIGTERM, then shuts everything down.
func (s *Server) Run() error {

	errCh := make(chan error, 2)

	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		if err := s.health.Serve(s.config.Server.GRPCAddress); err != nil {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
		s.logger.Error("server stopped unexpectedly", zap.Error(runErr))
	}

	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down http server", zap.Error(err))
	}
	s.travel.Close()

	return runErr
}

func (s *Server) registerMiddlewares() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.config.Server.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "Idempotency-Key"},
		AllowCredentials: true,
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID))
			return nil
		},
	}))
}

func (s *Server) registerRoutes() {

	s.echo.POST("/quotes", s.Quote.GetPrices)
	s.echo.GET("/quotes/:id", s.Quote.GetQuoteRun)

	s.echo.POST("/orders", s.Order.SubmitOrder)
	s.echo.GET("/orders/:id", s.Order.GetOrder)
	s.echo.POST("/orders/:id/payment", s.Order.PayOrder)

	s.echo.GET("/countries", s.Catalog.ListCountries)
	s.echo.GET("/providers", s.Catalog.ListProviders)

	s.echo.POST("/webhook/stripe", s.Webhook.HandleStripeWebhook)
}
