package calendar

import (
	"context"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"golang.org/x/oauth2"

	"agendabot/internal/types"
)

// GoogleAPI implements API against the Google Calendar v3 service. It is
// constructed fresh at the start of each aggregation cycle so it always
// carries the latest persisted credential.
type GoogleAPI struct {
	service *calendarapi.Service
}

// NewGoogleAPI builds the calendar service over the given token source.
func NewGoogleAPI(ctx context.Context, source oauth2.TokenSource) (*GoogleAPI, error) {
	service, err := calendarapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "failed to create calendar service", err)
	}
	return &GoogleAPI{service: service}, nil
}

// ListCalendars implements API.
func (g *GoogleAPI) ListCalendars(ctx context.Context) ([]types.CalendarSource, error) {
	list, err := g.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "failed to list calendars", err)
	}

	sources := make([]types.CalendarSource, 0, len(list.Items))
	for _, item := range list.Items {
		sources = append(sources, types.CalendarSource{
			Name:    item.Summary,
			ID:      item.Id,
			ColorID: item.ColorId,
		})
	}
	return sources, nil
}

// ListEvents implements API. Events are expanded to single instances and
// ordered by start time by the remote service.
func (g *GoogleAPI) ListEvents(ctx context.Context, calendarID string, from, to time.Time, max int64) ([]Event, error) {
	list, err := g.service.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "failed to list events", err)
	}

	events := make([]Event, 0, len(list.Items))
	for _, item := range list.Items {
		events = append(events, Event{
			ID:    item.Id,
			Title: item.Summary,
			Start: toEventTime(item.Start),
			End:   toEventTime(item.End),
		})
	}
	return events, nil
}

// toEventTime converts the API's EventDateTime into the boundary shape.
// DateTime is preferred; a bare Date marks an all-day event. A malformed
// instant degrades to the all-day form rather than dropping the event.
func toEventTime(edt *calendarapi.EventDateTime) EventTime {
	if edt == nil {
		return EventTime{}
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err == nil {
			return EventTime{DateTime: t}
		}
	}
	return EventTime{Date: edt.Date}
}
