// Package config defines the global configuration structure for agendabot.
// Configuration is loaded once at process start and is immutable thereafter.
// It follows 12-Factor principles: values come from the OS environment, with
// an optional .env file for local development.
//
// Any missing required value or invalid format causes startup to fail
// immediately (fail fast).
package config

import (
	"time"

	"agendabot/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Google   GoogleConfig
	AEMET    AEMETConfig
	Twilio   TwilioConfig
	Bot      BotConfig
	State    StateConfig
}

// ServerConfig holds HTTP server settings for the inbound webhook.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds connection and pool tuning for the Postgres state
// backend. URL may be empty when STATE_BACKEND=file.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// GoogleConfig holds the OAuth client used for the Google Calendar API.
type GoogleConfig struct {
	ClientID     string       `envconfig:"GOOGLE_CLIENT_ID" validate:"required"`
	ClientSecret SecretString `envconfig:"GOOGLE_CLIENT_SECRET" validate:"required"`
}

// AEMETConfig holds the AEMET OpenData API settings.
type AEMETConfig struct {
	APIKey  SecretString  `envconfig:"AEMET_API_KEY" validate:"required"`
	BaseURL string        `envconfig:"AEMET_BASE_URL" default:"https://opendata.aemet.es/opendata"`
	Timeout time.Duration `envconfig:"AEMET_TIMEOUT" default:"15s"`
}

// TwilioConfig holds the outbound WhatsApp messaging credentials.
type TwilioConfig struct {
	AccountSID string       `envconfig:"TWILIO_ACCOUNT_SID" validate:"required"`
	AuthToken  SecretString `envconfig:"TWILIO_AUTH_TOKEN" validate:"required"`
	From       string       `envconfig:"TWILIO_NUMBER" validate:"required"`
	To         string       `envconfig:"DEST_NUMBER" validate:"required"`
}

// BotConfig holds the digest behavior settings: who the digest addresses,
// which calendars feed it, and when it goes out.
type BotConfig struct {
	UserName            string        `envconfig:"USER_NAME" default:"Pelayo"`
	Timezone            string        `envconfig:"TIMEZONE" default:"Europe/Madrid"`
	Calendars           []string      `envconfig:"CALENDAR_LIST" validate:"required,min=1"`
	DailySendTime       string        `envconfig:"DAILY_SEND_TIME" default:"09:30" validate:"required,len=5"`
	DefaultMunicipality string        `envconfig:"DEFAULT_MUNICIPALITY" default:"Madrid"`
	DefaultLocationCode string        `envconfig:"DEFAULT_LOCATION_CODE" default:"28079"`
	TokenRefreshMargin  time.Duration `envconfig:"TOKEN_REFRESH_MARGIN" default:"30m"`
	TokenCheckInterval  time.Duration `envconfig:"TOKEN_CHECK_INTERVAL" default:"20m"`
	MaxEventsPerSource  int           `envconfig:"MAX_EVENTS_PER_SOURCE" default:"10"`
}

// StateConfig selects and parameterizes the persistence backend for the
// credential, location, and last-run records.
type StateConfig struct {
	Backend string `envconfig:"STATE_BACKEND" default:"file" validate:"required,oneof=file postgres"`
	Dir     string `envconfig:"STATE_DIR" default:"data"`
	// SealKey encrypts the persisted credential at rest. Exactly 32 bytes.
	SealKey SecretString `envconfig:"STATE_SEAL_KEY" validate:"required,len=32"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
