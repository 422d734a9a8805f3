// Package digest composes the three outbound message bodies of one
// aggregation cycle: the greeting, the weather summary, and the events
// summary. Composition is pure formatting; delivery belongs to the bot
// transport.
package digest

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"agendabot/internal/calendar"
	"agendabot/internal/types"
)

// greetingEmojis is the fixed palette for the random greeting emoji. Must
// never be empty.
var greetingEmojis = []string{
	"😊", "🌞", "🌻", "🌅", "☀️", "✨", "😎", "🤩", "🔥", "🌈", "⭐", "💫", "🌺",
}

// Composer renders digests for the configured user.
type Composer struct {
	userName string
	randInt  func(n int) int // injectable for tests
}

// NewComposer creates a Composer addressing digests to userName.
func NewComposer(userName string) *Composer {
	return &Composer{
		userName: userName,
		randInt:  rand.IntN,
	}
}

// Emoji picks a uniformly random greeting emoji from the palette.
func (c *Composer) Emoji() string {
	return greetingEmojis[c.randInt(len(greetingEmojis))]
}

// Compose builds the full three-body digest. The same randomly chosen emoji
// decorates both the greeting and the weather heading.
func (c *Composer) Compose(municipality string, forecast types.Forecast, events calendar.Result) types.Digest {
	emoji := c.Emoji()
	return types.Digest{
		Greeting: fmt.Sprintf("Buenos días %s!! %s", c.userName, emoji),
		Weather:  WeatherBody(municipality, forecast, emoji),
		Events:   EventsBody(events),
	}
}

// WeatherBody renders the weather summary for one municipality. emoji may be
// empty for the ad-hoc query reply, which carries no greeting decoration.
func WeatherBody(municipality string, forecast types.Forecast, emoji string) string {
	heading := fmt.Sprintf("El tiempo del día en %s es", municipality)
	if emoji != "" {
		heading += " " + emoji
	}

	return fmt.Sprintf("%s:\n\n"+
		"Madrugada 🌄: %s\n"+
		"Mañana 🌅: %s\n"+
		"Tarde 🌇: %s\n"+
		"Noche 🌆: %s\n\n"+
		"Probabilidad de lluvia en intervalos 🌧️: %s",
		heading,
		forecast.Parts.Dawn,
		forecast.Parts.Morning,
		forecast.Parts.Afternoon,
		forecast.Parts.Night,
		strings.Join(forecast.RainIntervals, ", "),
	)
}

// EventsBody renders the events summary: sorted timed events first, then
// birthdays, then all-day events, each on its own line.
func EventsBody(events calendar.Result) string {
	var b strings.Builder
	b.WriteString("Tus eventos del día son 🗒️:\n")

	if len(events.Timed) == 0 && len(events.Birthdays) == 0 && len(events.AllDay) == 0 {
		b.WriteString("No tienes eventos hoy.\n")
		return b.String()
	}

	for _, line := range events.Timed {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(events.Birthdays) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(events.Birthdays, "\n"))
	}
	if len(events.AllDay) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(events.AllDay, "\n"))
	}
	return b.String()
}
