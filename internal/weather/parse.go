package weather

import (
	"encoding/json"
	"strings"

	"agendabot/internal/types"
)

// rainThreshold is the probability (percent) above which a period becomes a
// rain window in the digest.
const rainThreshold = 50

// dayPartPeriods are the four canonical period strings of a forecast day.
const (
	periodDawn      = "00-06"
	periodMorning   = "06-12"
	periodAfternoon = "12-18"
	periodNight     = "18-24"
)

// skyState is one estadoCielo entry of the AEMET daily payload.
type skyState struct {
	Periodo     string `json:"periodo"`
	Descripcion string `json:"descripcion"`
}

// rainProb is one probPrecipitacion entry. AEMET emits the probability as an
// integer percentage.
type rainProb struct {
	Periodo string `json:"periodo"`
	Value   int    `json:"value"`
}

// forecastDay is one day of the municipal forecast.
type forecastDay struct {
	Fecha             string     `json:"fecha"`
	EstadoCielo       []skyState `json:"estadoCielo"`
	ProbPrecipitacion []rainProb `json:"probPrecipitacion"`
}

// dailyPayload is the top-level shape of the AEMET daily forecast document:
// an array with one element per municipality, each holding a prediccion with
// per-day entries.
type dailyPayload []struct {
	Prediccion struct {
		Dia []forecastDay `json:"dia"`
	} `json:"prediccion"`
}

// ParseDaily turns the raw daily-forecast document into the four day-part
// descriptions and the over-threshold rain windows for the first forecast day.
//
// It never returns an error: a malformed or truncated payload, or a day
// object lacking the estadoCielo or probPrecipitacion key entirely, yields
// the processing-error sentinel in every day-part and no rain windows, while
// a day whose keys are present but omit entries yields the unavailable
// sentinel only for the missing parts. The two sentinels are distinct values
// and must stay distinguishable.
func ParseDaily(raw []byte) (types.DayParts, []types.RainWindow) {
	var payload dailyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return types.ProcessingErrorDayParts(), nil
	}
	if len(payload) == 0 || len(payload[0].Prediccion.Dia) == 0 {
		return types.ProcessingErrorDayParts(), nil
	}

	day := payload[0].Prediccion.Dia[0]
	// An absent key decodes to a nil slice, an empty array to a non-nil one.
	if day.EstadoCielo == nil || day.ProbPrecipitacion == nil {
		return types.ProcessingErrorDayParts(), nil
	}
	return parseSkyStates(day.EstadoCielo), parseRainWindows(day.ProbPrecipitacion)
}

// parseSkyStates maps the most recent four sky-state entries onto the four
// fixed day-parts by period-string matching. AEMET prepends aggregate entries
// (whole-day, half-day) ahead of the six-hour ones, so positions cannot be
// trusted; only the trailing four entries are considered and each is placed
// by its period string.
func parseSkyStates(states []skyState) types.DayParts {
	parts := types.UnavailableDayParts()

	if len(states) > 4 {
		states = states[len(states)-4:]
	}

	for _, state := range states {
		switch {
		case strings.Contains(state.Periodo, periodDawn):
			parts.Dawn = state.Descripcion
		case strings.Contains(state.Periodo, periodMorning):
			parts.Morning = state.Descripcion
		case strings.Contains(state.Periodo, periodAfternoon):
			parts.Afternoon = state.Descripcion
		case strings.Contains(state.Periodo, periodNight):
			parts.Night = state.Descripcion
		}
	}

	return parts
}

// parseRainWindows keeps the most recent four probability entries whose value
// exceeds the threshold, parsed into deduplicated rain windows. Entries with
// an unparsable period (e.g. the whole-day aggregate with no period at all)
// are skipped.
func parseRainWindows(probs []rainProb) []types.RainWindow {
	if len(probs) > 4 {
		probs = probs[len(probs)-4:]
	}

	seen := make(map[types.RainWindow]bool)
	var windows []types.RainWindow
	for _, prob := range probs {
		if prob.Value <= rainThreshold {
			continue
		}
		w, ok := parsePeriod(prob.Periodo)
		if !ok || seen[w] {
			continue
		}
		seen[w] = true
		windows = append(windows, w)
	}
	return windows
}

// parsePeriod parses a "HH-HH" period string into a RainWindow.
func parsePeriod(s string) (types.RainWindow, bool) {
	start, end, found := strings.Cut(s, "-")
	if !found {
		return types.RainWindow{}, false
	}
	sh, ok := parseHour(start)
	if !ok {
		return types.RainWindow{}, false
	}
	eh, ok := parseHour(end)
	if !ok {
		return types.RainWindow{}, false
	}
	return types.RainWindow{Start: sh, End: eh}, true
}

// parseHour parses a two-digit hour in [0, 24].
func parseHour(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	if h > 24 {
		return 0, false
	}
	return h, true
}
