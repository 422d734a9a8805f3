// Package types defines the shared domain model for the agendabot platform:
// the persisted OAuth credential, calendar sources and events, forecast
// day-parts and rain windows, and the composed digest. It also provides the
// application error taxonomy, secret redaction, and request-ID propagation
// used by every other package.
package types

import (
	"fmt"
	"time"
)

// Credential is the persisted OAuth credential for the single configured
// account. It is the only piece of cross-cycle persistent state besides the
// location selection and last-run timestamp.
//
// A credential with a refresh token is renewable; one without is terminal
// once expired. It is never deleted automatically, only replaced.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Expired reports whether the credential's expiry has passed at the given time.
func (c *Credential) Expired(now time.Time) bool {
	return !c.Expiry.After(now)
}

// Renewable reports whether the credential carries a refresh token and can be
// renewed without user interaction.
func (c *Credential) Renewable() bool {
	return c.RefreshToken != ""
}

// TimeToExpiry returns the remaining lifetime of the access token. Negative
// when already expired.
func (c *Credential) TimeToExpiry(now time.Time) time.Duration {
	return c.Expiry.Sub(now)
}

// CalendarSource is one calendar visible to the authorized account, resolved
// by exact name match against the configured allow-list. Resolved fresh on
// every aggregation cycle.
type CalendarSource struct {
	Name    string
	ID      string
	ColorID string
}

// EventCategory classifies a calendar event into exactly one bucket.
type EventCategory string

const (
	// EventTimed is an event with precise start and end instants.
	EventTimed EventCategory = "timed"
	// EventAllDay is a date-only event from any source other than the
	// birthdays calendar.
	EventAllDay EventCategory = "all_day"
	// EventBirthday is a date-only event from the birthdays calendar.
	EventBirthday EventCategory = "birthday"
)

// FormattedEvent is a classified, rendered calendar event. SortKey carries
// the original start instant for timed events; it is the zero time for
// all-day and birthday events, which are never sorted beyond discovery order.
type FormattedEvent struct {
	Category    EventCategory
	SortKey     time.Time
	Description string
}

// Day-part description sentinels. Both mean "no usable description", but
// they are distinct values: DescUnavailable marks data the source simply did
// not publish, DescProcessingError marks a payload that failed to parse.
// Call sites must not collapse the two.
const (
	DescUnavailable     = "No disponible"
	DescProcessingError = "Error al procesar datos"
)

// DayParts holds the sky-state description for each of the four fixed
// six-hour segments of a forecast day. Fields are never empty: missing data
// maps to DescUnavailable, parse failures to DescProcessingError.
type DayParts struct {
	Dawn      string // 00-06
	Morning   string // 06-12
	Afternoon string // 12-18
	Night     string // 18-24
}

// UnavailableDayParts returns a DayParts with every segment set to the
// missing-data sentinel.
func UnavailableDayParts() DayParts {
	return DayParts{
		Dawn:      DescUnavailable,
		Morning:   DescUnavailable,
		Afternoon: DescUnavailable,
		Night:     DescUnavailable,
	}
}

// ProcessingErrorDayParts returns a DayParts with every segment set to the
// parse-failure sentinel.
func ProcessingErrorDayParts() DayParts {
	return DayParts{
		Dawn:      DescProcessingError,
		Morning:   DescProcessingError,
		Afternoon: DescProcessingError,
		Night:     DescProcessingError,
	}
}

// RainWindow is a half-open [Start, End) period of whole hours during which
// the forecast rain probability exceeds the reporting threshold.
type RainWindow struct {
	Start int
	End   int
}

// String renders the window as "HH-HH" with two-digit zero-padded hours.
func (w RainWindow) String() string {
	return fmt.Sprintf("%02d-%02d", w.Start, w.End)
}

// Forecast is the parsed daily forecast for one municipality: the four
// day-part descriptions plus the consolidated high-probability rain windows.
type Forecast struct {
	Parts         DayParts
	RainIntervals []string
}

// Digest is the set of rendered message bodies for one aggregation cycle.
// It is never persisted.
type Digest struct {
	Greeting string
	Weather  string
	Events   string
}

// Location is the current municipality selection for forecast lookups.
type Location struct {
	Municipality string `json:"municipality"`
	Code         string `json:"code"`
}
