package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database Database `envPrefix:"DB_"`
	Gateway  Gateway  `envPrefix:"GATEWAY_"`
	Email    Email    `envPrefix:"EMAIL_"`
	Export   Export   `envPrefix:"EXPORT_"`
	Pricing  Pricing  `envPrefix:"PRICING_"`
	Admin    Admin    `envPrefix:"ADMIN_"`
}

type Database struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"` // sqlite, mysql
	URL          string `env:"URL" envDefault:"orders.db?_busy_timeout=5000&_txlock=immediate"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
}

type Gateway struct {
	BaseApiURL         string        `env:"BASE_API_URL"`
	SecretKey          string        `env:"SECRET_KEY"`
	WebhookSecret      string        `env:"WEBHOOK_SECRET"`
	SignatureTolerance time.Duration `env:"SIGNATURE_TOLERANCE" envDefault:"5m"`
	SuccessURL         string        `env:"SUCCESS_URL"`
	CancelURL          string        `env:"CANCEL_URL"`
}

type Email struct {
	ApiURL      string `env:"API_URL"`
	ApiKey      string `env:"API_KEY"`
	FromAddress string `env:"FROM_ADDRESS" envDefault:"orders@example.com"`
	FromName    string `env:"FROM_NAME" envDefault:"Meal Orders"`
	Async       bool   `env:"ASYNC" envDefault:"true"`
}

type Export struct {
	ErpURL       string        `env:"ERP_URL"`
	ApiKey       string        `env:"API_KEY"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"20"`
	RatePerSec   float64       `env:"RATE_PER_SEC" envDefault:"2"`
}

// Pricing amounts are minor units.
type Pricing struct {
	Currency          string `env:"CURRENCY" envDefault:"AUD"`
	GSTRate           int64  `env:"GST_RATE" envDefault:"10"`
	DefaultDeposit    int64  `env:"DEFAULT_DEPOSIT" envDefault:"10000"`
	PartialPriceFloor int64  `env:"PARTIAL_PRICE_FLOOR" envDefault:"100000"`
}

type Admin struct {
	ApiToken string `env:"API_TOKEN"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
