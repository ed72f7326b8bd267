package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from the environment, optionally seeded from a .env file.
// No business logic should depend on raw environment variables.
type Config struct {
	App         AppConfig
	Store       StoreConfig
	DB          DBConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Credentials CredentialsConfig
	Push        PushConfig
}

type AppConfig struct {
	Env  string `env:"APP_ENV" validate:"required,oneof=local dev staging production"`
	Port int    `env:"APP_PORT" envDefault:"8000" validate:"min=1,max=65535"`

	// CollaboratorTimeout bounds each call to the credential issuer and push provider.
	CollaboratorTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"5s"`
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" envDefault:"memory" validate:"oneof=memory redis postgres"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string `env:"DB_SSLMODE"`
}

type RedisConfig struct {
	// Addrs, when set, selects a cluster client and overrides Host/Port.
	Addrs     []string `env:"REDIS_ADDRS" envSeparator:","`
	Host      string   `env:"REDIS_HOST"`
	Port      int      `env:"REDIS_PORT" envDefault:"6379"`
	Password  string   `env:"REDIS_PASSWORD"`
	KeyPrefix string   `env:"REDIS_KEY_PREFIX" envDefault:"callbridge:"`
}

type AuthConfig struct {
	JWTSecret   string        `env:"JWT_SECRET"`
	JWTIssuer   string        `env:"JWT_ISSUER"`
	JWTAudience string        `env:"JWT_AUDIENCE"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// RequireSession makes endpoint registration and call triggering demand a session token.
	RequireSession bool `env:"AUTH_REQUIRE_SESSION" envDefault:"false"`
}

// Credential issuers. local builds Agora RTC tokens in-process; jwt signs
// HS256 tokens for non-Agora media backends.
const (
	IssuerLocal = "local"
	IssuerJWT   = "jwt"
	IssuerHTTP  = "http"
)

type CredentialsConfig struct {
	AppID          string        `env:"RTC_APP_ID"`
	AppCertificate string        `env:"RTC_APP_CERTIFICATE"`
	TokenTTL       time.Duration `env:"RTC_TOKEN_TTL" envDefault:"1h"`
	Issuer         string        `env:"CREDENTIAL_ISSUER" envDefault:"local" validate:"oneof=local jwt http"`
	IssuerURL      string        `env:"CREDENTIAL_ISSUER_URL" validate:"omitempty,url"`
}

const (
	PushLog  = "log"
	PushFCM  = "fcm"
	PushSNS  = "sns"
	PushNATS = "nats"
)

type PushConfig struct {
	Provider           string `env:"PUSH_PROVIDER" envDefault:"log" validate:"oneof=log fcm sns nats"`
	FCMCredentialsFile string `env:"FCM_CREDENTIALS_FILE"`
	SNSRegion          string `env:"SNS_REGION"`
	NATSURL            string `env:"NATS_URL"`
	NATSSubjectPrefix  string `env:"NATS_SUBJECT_PREFIX" envDefault:"calls.invite"`
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	c := Config{}
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks the config and applies environment-dependent defaults.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s failed %q validation, got %v", envName(fe), fe.Tag(), fe.Value()))
		}
	}

	switch c.Store.Backend {
	case BackendPostgres:
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required for postgres backend"))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required for postgres backend"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required for postgres backend"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	case BackendRedis:
		if len(c.Redis.Addrs) > 0 {
			break
		}
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST or REDIS_ADDRS is required for redis backend"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	switch c.Credentials.Issuer {
	case IssuerLocal, IssuerJWT:
		if c.Credentials.AppID == "" {
			errs = append(errs, errors.New("RTC_APP_ID is required"))
		}
		if c.Credentials.AppCertificate == "" {
			errs = append(errs, errors.New("RTC_APP_CERTIFICATE is required for the local and jwt issuers"))
		}
	case IssuerHTTP:
		if c.Credentials.IssuerURL == "" {
			errs = append(errs, errors.New("CREDENTIAL_ISSUER_URL is required for the http issuer"))
		}
	}
	if c.Credentials.TokenTTL <= 0 {
		errs = append(errs, errors.New("RTC_TOKEN_TTL must be positive"))
	}

	switch c.Push.Provider {
	case PushSNS:
		if c.Push.SNSRegion == "" {
			errs = append(errs, errors.New("SNS_REGION is required for the sns push provider"))
		}
	case PushNATS:
		if c.Push.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats push provider"))
		}
	case PushLog:
		if c.IsProduction() {
			errs = append(errs, errors.New("PUSH_PROVIDER=log is not allowed in production"))
		}
	}

	if c.App.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("COLLABORATOR_TIMEOUT must be positive"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddrs() []string {
	if len(c.Redis.Addrs) > 0 {
		return c.Redis.Addrs
	}
	return []string{fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)}
}

var envNames = map[string]string{
	"Env":       "APP_ENV",
	"Port":      "APP_PORT",
	"Backend":   "STORE_BACKEND",
	"Issuer":    "CREDENTIAL_ISSUER",
	"IssuerURL": "CREDENTIAL_ISSUER_URL",
	"Provider":  "PUSH_PROVIDER",
}

func envName(fe validator.FieldError) string {
	if n, ok := envNames[fe.StructField()]; ok {
		return n
	}
	return fe.Namespace()
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
