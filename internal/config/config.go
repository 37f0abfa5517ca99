// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// ProfileBackend selects the profile store adapter: "postgres" or "mongo".
	ProfileBackend string `mapstructure:"PROFILE_BACKEND"`
	// DatabaseURL is the Postgres DSN; required when ProfileBackend is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MongoURL is the MongoDB connection string; required when ProfileBackend is mongo.
	MongoURL string `mapstructure:"MONGO_URL"`
	// MongoDatabase is the MongoDB database holding the profiles collection.
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	// JWTPublicKey is the PEM-encoded public key (RSA or ECDSA) or path to file, used to verify provider access tokens.
	JWTPublicKey string `mapstructure:"AUTH_JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim of provider access tokens.
	JWTIssuer string `mapstructure:"AUTH_JWT_ISSUER"`
	// JWTAudience is the expected aud claim of provider access tokens.
	JWTAudience string `mapstructure:"AUTH_JWT_AUDIENCE"`
	// ProfileLookupTimeout bounds one profile lookup (e.g. "10s").
	ProfileLookupTimeout string `mapstructure:"PROFILE_LOOKUP_TIMEOUT"`
	// SignInPath is where gates redirect unauthenticated users.
	SignInPath string `mapstructure:"SIGNIN_PATH"`
	// AccessPolicy is an optional Rego module (inline or a file path is the
	// caller's concern) replacing the built-in role policy.
	AccessPolicy string `mapstructure:"ACCESS_POLICY"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Telemetry (optional). When Kafka brokers are set, session transitions are
	// emitted to Kafka; otherwise to the OTLP endpoint if one is set.
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. "localhost:4317"); empty disables OTel export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for session transition events.
	TelemetryKafkaTopic string `mapstructure:"SESSION_KAFKA_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("PROFILE_BACKEND", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MONGO_URL", "")
	v.SetDefault("MONGO_DATABASE", "educonsole")
	v.SetDefault("AUTH_JWT_PUBLIC_KEY", "")
	v.SetDefault("AUTH_JWT_ISSUER", "educonsole-auth")
	v.SetDefault("AUTH_JWT_AUDIENCE", "educonsole-admin")
	v.SetDefault("PROFILE_LOOKUP_TIMEOUT", "10s")
	v.SetDefault("SIGNIN_PATH", "/signin")
	v.SetDefault("ACCESS_POLICY", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SESSION_KAFKA_TOPIC", "educonsole-session-events")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	switch cfg.ProfileBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when PROFILE_BACKEND=postgres")
		}
	case "mongo":
		if cfg.MongoURL == "" {
			return nil, errors.New("config: MONGO_URL must be set when PROFILE_BACKEND=mongo")
		}
	default:
		return nil, errors.New("config: PROFILE_BACKEND must be postgres or mongo")
	}

	if cfg.JWTPublicKey == "" {
		return nil, errors.New("config: AUTH_JWT_PUBLIC_KEY must be set")
	}

	return &cfg, nil
}

// LookupTimeout parses ProfileLookupTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) LookupTimeout() time.Duration {
	d, err := time.ParseDuration(c.ProfileLookupTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
