package bot

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"agendabot/internal/auth"
	"agendabot/internal/calendar"
	"agendabot/internal/digest"
	"agendabot/internal/types"
)

// Canned replies for the conversational paths.
const (
	replyWeatherError   = "Hubo un problema al obtener el pronóstico del tiempo. Intenta nuevamente más tarde."
	replyEventsError    = "Hubo un problema al obtener los eventos. Intenta nuevamente más tarde."
	replyChangePrompt   = "Escribe el nombre de tu municipio para actualizar la ubicación."
	replyNotFound       = "No se ha encontrado el municipio, intenta de nuevo o verifica el nombre correctamente."
	replyResolveError   = "Hubo un problema al buscar el municipio. Intenta nuevamente más tarde."
	replyTokenRenewed   = "El token de acceso sigue siendo válido."
	replyTokenNoRefresh = "No hay token de refresco disponible. Hace falta volver a autorizar el acceso al calendario."
	replyTokenError     = "Hubo un problema al renovar el token. Intenta nuevamente más tarde."
	replyHelp           = "Lo siento, no he entendido tu mensaje. Intenta usar 'tiempo', 'eventos' o 'cambiar ubicación'."
)

// twiMLResponse is the XML document Twilio expects back from an inbound
// message webhook.
type twiMLResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// handleWhatsApp routes one inbound WhatsApp message by keyword and answers
// with a TwiML message. The handler always replies 200 with a body; upstream
// failures become apologetic replies, not HTTP errors, so the conversation
// never dead-ends.
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.logger.WarnContext(r.Context(), "malformed webhook form", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	incoming := strings.ToLower(strings.TrimSpace(r.FormValue("Body")))
	reply := s.route(r, incoming)
	s.writeTwiML(w, r, reply)
}

// route picks the reply for one normalized inbound message. Keywords are
// checked before the free-text municipality fallback so "tiempo en X" never
// triggers a location change.
func (s *Server) route(r *http.Request, incoming string) string {
	ctx := r.Context()

	switch {
	case strings.Contains(incoming, "renovar token"):
		result, err := s.reporter.CheckCredential(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "manual credential renewal failed", "error", err)
			return replyTokenError
		}
		switch result {
		case auth.RefreshNoToken:
			return replyTokenNoRefresh
		case auth.RefreshFailed:
			return replyTokenError
		default:
			return replyTokenRenewed
		}

	case strings.Contains(incoming, "tiempo"):
		municipality, forecast, err := s.reporter.WeatherReport(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "ad-hoc weather query failed", "error", err)
			return replyWeatherError
		}
		return digest.WeatherBody(municipality, forecast, "")

	case strings.Contains(incoming, "eventos"):
		events, err := s.reporter.EventsReport(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "ad-hoc events query failed", "error", err)
			return replyEventsError
		}
		return eventsReply(events)

	case strings.Contains(incoming, "cambiar ubicación"),
		strings.Contains(incoming, "cambiar ubicacion"):
		return replyChangePrompt

	case isMunicipalityCandidate(incoming):
		return s.changeLocation(r, incoming)

	default:
		return replyHelp
	}
}

// changeLocation resolves the free-text municipality name and persists it as
// the forecast location.
func (s *Server) changeLocation(r *http.Request, name string) string {
	ctx := r.Context()

	loc, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundMunicipality {
			return replyNotFound
		}
		s.logger.WarnContext(ctx, "municipality resolution failed",
			"name", name,
			"error", err,
		)
		return replyResolveError
	}

	if err := s.state.SetLocation(ctx, loc); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist location",
			"municipality", loc.Municipality,
			"error", err,
		)
		return replyResolveError
	}

	s.logger.InfoContext(ctx, "forecast location updated",
		"municipality", loc.Municipality,
		"code", loc.Code,
	)
	return fmt.Sprintf("Ubicación actualizada a %s, código %s.", loc.Municipality, loc.Code)
}

// eventsReply renders the ad-hoc events answer. It is plainer than the daily
// digest body: same content, no decorative heading emoji.
func eventsReply(events calendar.Result) string {
	var b strings.Builder
	b.WriteString("Tus eventos del día son:\n")

	if len(events.Timed) == 0 && len(events.Birthdays) == 0 && len(events.AllDay) == 0 {
		b.WriteString("No tienes eventos hoy.\n")
		return b.String()
	}

	for _, line := range events.Timed {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(events.Birthdays) > 0 {
		b.WriteString(strings.Join(events.Birthdays, "\n"))
		b.WriteString("\n")
	}
	if len(events.AllDay) > 0 {
		b.WriteString(strings.Join(events.AllDay, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// isMunicipalityCandidate reports whether the message looks like a bare place
// name: letters and spaces only, at least one letter.
func isMunicipalityCandidate(s string) bool {
	seenLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			seenLetter = true
		case r == ' ':
		default:
			return false
		}
	}
	return seenLetter
}

// writeTwiML serializes the reply into the Twilio webhook response format.
func (s *Server) writeTwiML(w http.ResponseWriter, r *http.Request, body string) {
	payload, err := xml.Marshal(twiMLResponse{Message: body})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode reply", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(payload)
}
