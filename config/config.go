package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bestoffer.kz/travel/driver"
	"bestoffer.kz/travel/models"
)

const (
	defaultConfigFile = "./config.yaml"
	configFileEnv     = "TRAVEL_CONFIG"
	envPrefix         = "TRAVEL"

	providerBaseURL = "https://bestoffer.kz/api/mst"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Quotes   QuotesConfig   `mapstructure:"quotes"`
	Order    OrderConfig    `mapstructure:"order"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Events   EventsConfig   `mapstructure:"events"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	GRPCAddress  string   `mapstructure:"grpc_address"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type QuotesConfig struct {
	Timeout   time.Duration             `mapstructure:"timeout"`
	Headers   map[string]string         `mapstructure:"headers"`
	Providers []models.ProviderEndpoint `mapstructure:"providers"`
}

type OrderConfig struct {
	Provider    string        `mapstructure:"provider"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	InFlightTTL time.Duration `mapstructure:"in_flight_ttl"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Currency      string `mapstructure:"currency"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NatsConfig struct {
	URL string `mapstructure:"url"`
}

type EventsConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ProvideApplicationConfig loads the file named by TRAVEL_CONFIG, falling
// back to ./config.yaml.
func ProvideApplicationConfig() (*Config, error) {
	path := os.Getenv(configFileEnv)
	if path == "" {
		path = defaultConfigFile
	}
	return Load(path)
}

// Load reads path (a missing file is not an error) and applies defaults and
// TRAVEL_* environment overrides.
func Load(path string) (*Config, error) {

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Quotes.Timeout <= 0 {
		return nil, fmt.Errorf("quotes.timeout must be positive, got %s", config.Quotes.Timeout)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.grpc_address", ":9090")
	v.SetDefault("server.allow_origins", []string{"https://bestoffer.kz"})

	v.SetDefault("quotes.timeout", 10*time.Second)
	providers := make([]map[string]any, 0, 6)
	for _, name := range []string{"amanat", "interteach", "asko", "freedom", "nomad", "jusan"} {
		providers = append(providers, map[string]any{
			"name": name,
			"url":  providerBaseURL + "/" + name,
		})
	}
	v.SetDefault("quotes.providers", providers)

	v.SetDefault("order.provider", "nomad")
	v.SetDefault("order.url", providerBaseURL+"/nomad/order")
	v.SetDefault("order.timeout", 30*time.Second)
	v.SetDefault("order.in_flight_ttl", 2*time.Minute)

	v.SetDefault("stripe.currency", "kzt")
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")

	v.SetDefault("postgres.url", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("events.workers", 4)
	v.SetDefault("events.queue_size", 256)

	v.SetDefault("log.level", "info")
}

func NewLogger(appConfig *Config) *zap.Logger {

	zapConfig := zap.NewProductionConfig()
	if appConfig.Log.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}

	if level, err := zapcore.ParseLevel(appConfig.Log.Level); err == nil {
		zapConfig.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func ProvidePostgresConn(appConfig *Config) (driver.PostgresPool, error) {

	conn, err := driver.ConnectSQL(appConfig.Postgres.URL)
	if err != nil {
		return nil, err
	}

	return conn.Pool, nil
}

func ProvideRedis(appConfig *Config) (*redis.Client, error) {
	return driver.ConnectRedis(appConfig.Redis.Addr, appConfig.Redis.Password, appConfig.Redis.DB)
}

// ProvideNats returns a nil connection when no URL is configured; events are
// then dispatched in-process.
func ProvideNats(appConfig *Config, logger *zap.Logger) (*nats.Conn, error) {
	if appConfig.Nats.URL == "" {
		logger.Info("nats url not configured, events stay in-process")
		return nil, nil
	}

	nc, err := nats.Connect(appConfig.Nats.URL, nats.Name("bestoffer-travel"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

func ProvideHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		Name:                "bestoffer-travel",
		MaxConnsPerHost:     64,
		MaxIdleConnDuration: 30 * time.Second,
		ReadTimeout:         time.Minute,
		WriteTimeout:        time.Minute,
	}
}

func ProvideStripeClient(appConfig *Config) *client.API {
	return client.New(appConfig.Stripe.SecretKey, nil)
}
