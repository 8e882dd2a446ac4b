package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:5173"`
	Storage     `yaml:"storage"`
	Tokens      `yaml:"tokens"`
	RabbitMQ    `yaml:"rabbitmq"`
	Postgres    `yaml:"postgres"`
	Redis       `yaml:"redis"`
	HTTPServer  `yaml:"http_server"`
	RateLimit   `yaml:"rate_limit"`
	CORS        `yaml:"cors"`
	Assistant   `yaml:"assistant"`
	STT         `yaml:"stt"`
	Mail        `yaml:"mail"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:5000"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY" env-default:"false"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Tokens struct {
	AccessTokenSecret    string        `yaml:"access_token_secret" env:"JWT_SECRET" env-required:"true"`
	Issuer               string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"campus-echo"`
	AccessTokenTTL       time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL      time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	VerificationTokenTTL time.Duration `yaml:"verification_token_ttl" env:"VERIFICATION_TOKEN_TTL" env-default:"24h"`
	ResetTokenTTL        time.Duration `yaml:"reset_token_ttl" env:"RESET_TOKEN_TTL" env-default:"1h"`
	ForgotPasswordFloor  time.Duration `yaml:"forgot_password_floor" env:"FORGOT_PASSWORD_FLOOR" env-default:"400ms"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval" env:"TOKEN_CLEANUP_INTERVAL" env-default:"1h"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"campus_echo.mail"`
}

type RateLimit struct {
	Window      time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"15m"`
	MaxRequests int           `yaml:"max_requests" env:"RATE_LIMIT_MAX_REQUESTS" env-default:"5"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
}

type Assistant struct {
	URL         string        `yaml:"url" env:"LCPS_AI_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"LCPS_AI_TIMEOUT" env-default:"15s"`
	MaxFailures uint32        `yaml:"max_failures" env:"LCPS_AI_MAX_FAILURES" env-default:"5"`
	OpenFor     time.Duration `yaml:"open_for" env:"LCPS_AI_OPEN_FOR" env-default:"30s"`
}

type STT struct {
	BaseURL string        `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	APIKey  string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	Model   string        `yaml:"model" env:"OPENAI_STT_MODEL" env-default:"whisper-1"`
	Timeout time.Duration `yaml:"timeout" env:"OPENAI_STT_TIMEOUT" env-default:"60s"`
}

type Mail struct {
	Host     string `yaml:"host" env:"EMAIL_HOST"`
	Port     int    `yaml:"port" env:"EMAIL_PORT" env-default:"587"`
	Username string `yaml:"username" env:"EMAIL_USER"`
	Password string `yaml:"password" env:"EMAIL_PASSWORD"`
	From     string `yaml:"from" env:"EMAIL_FROM"`
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

// * Load читает конфиг из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
		}

		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("postgres user and dbname are required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	return nil
}
