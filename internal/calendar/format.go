package calendar

import (
	"fmt"
	"strings"

	"agendabot/internal/types"
)

// colorEmoji maps Google Calendar colorId values to the indicator emoji used
// in event descriptions.
var colorEmoji = map[string]string{
	"1":  "🔴",
	"2":  "🟠",
	"3":  "🟡",
	"4":  "🟢",
	"5":  "🔵",
	"6":  "🔷",
	"7":  "🟣",
	"8":  "🟤",
	"9":  "⚫",
	"10": "⚪",
	"11": "🟡",
}

// defaultColorEmoji is used when the calendar's colorId is unknown or unmapped.
const defaultColorEmoji = "🔘"

// emojiForColor returns the indicator emoji for a calendar colorId.
func emojiForColor(colorID string) string {
	if emoji, ok := colorEmoji[colorID]; ok {
		return emoji
	}
	return defaultColorEmoji
}

// isBirthdaySource reports whether a calendar name designates the birthdays
// calendar. Matched case-insensitively in both English and Spanish since
// Google names the built-in calendar per account locale.
func isBirthdaySource(name string) bool {
	return strings.EqualFold(name, "Birthdays") || strings.EqualFold(name, "Cumpleaños")
}

// classify assigns an event to exactly one category and renders its display
// string. Rules, in order:
//  1. precise start and end instants -> Timed
//  2. date-only from the birthdays calendar -> Birthday (never AllDay)
//  3. date-only otherwise -> AllDay
func (a *Aggregator) classify(ev Event, src types.CalendarSource) types.FormattedEvent {
	color := emojiForColor(src.ColorID)

	if !ev.Start.AllDay() && !ev.End.AllDay() {
		start := ev.Start.DateTime.In(a.location)
		end := ev.End.DateTime.In(a.location)
		return types.FormattedEvent{
			Category: types.EventTimed,
			SortKey:  ev.Start.DateTime,
			Description: fmt.Sprintf("%s De %s a %s: %s",
				color, start.Format("15:04"), end.Format("15:04"), ev.Title),
		}
	}

	if isBirthdaySource(src.Name) {
		return types.FormattedEvent{
			Category:    types.EventBirthday,
			Description: fmt.Sprintf("🎂 Hoy es el cumpleaños de %s", ev.Title),
		}
	}

	return types.FormattedEvent{
		Category:    types.EventAllDay,
		Description: fmt.Sprintf("%s Hoy es el día de %s", color, ev.Title),
	}
}
