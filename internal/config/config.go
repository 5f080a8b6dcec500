package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort    string `env:"APP_PORT,default=8080"`
	AppBaseURL string `env:"APP_BASE_URL"`
	DBDSN      string `env:"DB_DSN,required"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret     string `env:"JWT_SECRET"`
	JWTExpiresMin int    `env:"JWT_EXPIRES_MIN,default=10080"`
	BcryptCost    int    `env:"BCRYPT_COST,default=12"`

	PlatformFeePercent int64  `env:"PLATFORM_FEE_PERCENT,default=10"`
	DefaultCurrency    string `env:"DEFAULT_CURRENCY,default=XOF"`

	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS,default=5"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW,default=15m"`
	APIRatePerSec    int           `env:"API_RATE_PER_SEC,default=20"`
	APIRateBurst     int           `env:"API_RATE_BURST,default=40"`

	Log Log

	GoogleClientID  string `env:"GOOGLE_CLIENT_ID"`
	GoogleSecret    string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirect  string `env:"GOOGLE_REDIRECT_URL"`
	FrontendBaseURL string `env:"FRONTEND_BASE_URL,default=http://localhost:3000"`
	CORSOrigins     string `env:"CORS_ORIGINS,default=http://localhost:3000"` // comma separated

	Gateway Gateway
}

type Log struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

type Gateway struct {
	BaseURL      string `env:"GATEWAY_BASE_URL"`
	APIKey       string `env:"GATEWAY_API_KEY"`
	PrivateKey   string `env:"GATEWAY_PRIVATE_KEY"`
	MerchantCode string `env:"GATEWAY_MERCHANT_CODE"`
}

// Enabled reports whether a provider is configured; without one payments stay PENDING.
func (g Gateway) Enabled() bool {
	return g.BaseURL != "" && g.APIKey != ""
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTExpiresMin) * time.Minute
}

func (c Config) AllowOrigins() string {
	parts := strings.Split(c.CORSOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, err
	}
	// a fee of 100% or more leaves the freelance nothing to release
	if cfg.PlatformFeePercent < 0 || cfg.PlatformFeePercent >= 100 {
		return Config{}, fmt.Errorf("PLATFORM_FEE_PERCENT must be in [0, 100), got %d", cfg.PlatformFeePercent)
	}
	return cfg, nil
}
