package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	Reservations  ReservationsConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FARMLOT_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMLOT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FARMLOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMLOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"FARMLOT_DB_DSN"`

	Host     string `envconfig:"FARMLOT_DB_HOST"`
	Port     int    `envconfig:"FARMLOT_DB_PORT" default:"5432"`
	User     string `envconfig:"FARMLOT_DB_USER"`
	Password string `envconfig:"FARMLOT_DB_PASSWORD"`
	Name     string `envconfig:"FARMLOT_DB_NAME"`
	SSLMode  string `envconfig:"FARMLOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMLOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMLOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMLOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMLOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either FARMLOT_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMLOT_REDIS_URL"`
	Address      string        `envconfig:"FARMLOT_REDIS_ADDR"`
	Password     string        `envconfig:"FARMLOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMLOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMLOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMLOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMLOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMLOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMLOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FARMLOT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FARMLOT_JWT_ISSUER" default:"farmlot"`
	ExpirationMinutes int    `envconfig:"FARMLOT_JWT_EXPIRATION_MINUTES" default:"120"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"FARMLOT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"FARMLOT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"FARMLOT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type ReservationsConfig struct {
	// MaxLines bounds how many lot lines a single reservation or open sale
	// may carry; each line takes a row lock for the life of the transaction.
	MaxLines int `envconfig:"FARMLOT_RESERVATIONS_MAX_LINES" default:"25"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FARMLOT_FEATURE_AUTO_MIGRATE" default:"false"`
}
