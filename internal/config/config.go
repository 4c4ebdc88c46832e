package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "STOREFRONT"

// PageSize is the fixed page size used by every list endpoint.
const PageSize = 10

type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	MongoURI       string        `envconfig:"MONGO_URI" required:"true"`
	DBName         string        `envconfig:"DB_NAME" default:"storefront"`
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`
	CookieName     string        `envconfig:"COOKIE_NAME" default:"token"`
	CookieSecure   bool          `envconfig:"COOKIE_SECURE" default:"false"`
	UploadDir      string        `envconfig:"UPLOAD_DIR" default:"./public/uploads"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"json"`
	AdminEmail     string        `envconfig:"ADMIN_EMAIL"`
	RedisURL       string        `envconfig:"REDIS_URL"`

	// Nested settings are read as STOREFRONT_SMTP_HOST, STOREFRONT_NOTIFY_WORKERS, ...
	SMTP          SMTPConfig      `envconfig:"SMTP"`
	Notify        NotifyConfig    `envconfig:"NOTIFY"`
	AuthRateLimit RateLimitConfig `envconfig:"AUTH_RATE_LIMIT"`
}

// SMTPConfig configures outbound mail. An empty Host selects the log-only mailer.
type SMTPConfig struct {
	Host     string
	Port     int `default:"587"`
	Username string
	Password string
	From     string `default:"no-reply@storefront.local"`
}

type NotifyConfig struct {
	Workers     int           `default:"2"`
	QueueSize   int           `split_words:"true" default:"256"`
	SendTimeout time.Duration `split_words:"true" default:"10s"`
}

// RateLimitConfig throttles the auth endpoints. It only applies when RedisURL is set.
type RateLimitConfig struct {
	Window time.Duration `default:"1m"`
	Limit  int           `default:"20"`
}

// Load reads .env (when present) and decodes the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	cfg.applyPlatformDefaults()

	if strings.TrimSpace(cfg.MongoURI) == "" {
		return nil, errors.New("mongo uri is required")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the conventional PORT variable set by most hosting
// platforms onto the prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && c.Port == "8080" {
		c.Port = port
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// SMTPEnabled reports whether a real mail server is configured.
func (c *Config) SMTPEnabled() bool {
	return strings.TrimSpace(c.SMTP.Host) != ""
}
