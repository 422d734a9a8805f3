// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC as the process time.Local to prevent drift bugs; the bot's
//     display timezone is carried explicitly in BotConfig.Timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator, plus the checks
//     envconfig tags cannot express (timezone, send time).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig loads and validates the agendabot configuration from the
// environment. A .env file in the working directory is honored but never
// overrides already-set variables.
func LoadConfig() (*Config, error) {
	time.Local = time.UTC

	// Non-fatal if no .env exists.
	_ = godotenv.Load()

	// The empty prefix "" means envconfig uses the exact tag values
	// (e.g., envconfig:"TIMEZONE" reads TIMEZONE directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if err := validateSemantics(&cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// validateSemantics checks the constraints struct tags cannot express.
func validateSemantics(cfg *Config) error {
	if _, err := time.LoadLocation(cfg.Bot.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Bot.Timezone, err)
	}
	if _, _, err := ParseTimeOfDay(cfg.Bot.DailySendTime); err != nil {
		return fmt.Errorf("invalid DAILY_SEND_TIME: %w", err)
	}
	if cfg.State.Backend == "postgres" && cfg.Database.URL.Unmask() == "" {
		return fmt.Errorf("DATABASE_URL is required when STATE_BACKEND=postgres")
	}
	return nil
}

// ParseTimeOfDay parses a "HH:MM" string into hour and minute components.
// The input must be exactly in zero-padded 24-hour HH:MM format.
func ParseTimeOfDay(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
