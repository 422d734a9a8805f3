// Package calendar implements the event aggregator: it resolves the
// configured calendar names against the account's calendar list, queries each
// source for today's events, classifies and renders them, and returns the
// three ordered description collections the digest composer consumes.
package calendar

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"agendabot/internal/types"
)

// sourceConcurrencyLimit bounds parallel per-calendar event queries.
const sourceConcurrencyLimit = 4

// Event is a raw calendar event at the API boundary. Exactly one of
// Start.DateTime / Start.Date is populated (same for End).
type Event struct {
	ID    string
	Title string
	Start EventTime
	End   EventTime
}

// EventTime is either a precise instant or a date-only "all day" marker.
type EventTime struct {
	DateTime time.Time // zero when date-only
	Date     string    // "YYYY-MM-DD" when date-only, "" otherwise
}

// AllDay reports whether this is a date-only marker.
func (t EventTime) AllDay() bool {
	return t.DateTime.IsZero()
}

// API abstracts the remote calendar service. The google adapter implements
// it; tests use an in-memory fake.
type API interface {
	// ListCalendars returns all calendars visible to the authorized account.
	ListCalendars(ctx context.Context) ([]types.CalendarSource, error)
	// ListEvents returns events overlapping [from, to) in the given calendar,
	// ordered by start time, capped at max results.
	ListEvents(ctx context.Context, calendarID string, from, to time.Time, max int64) ([]Event, error)
}

// Result is the triple of rendered description lists for one aggregation
// cycle. Timed is sorted ascending by original start instant; Birthdays and
// AllDay preserve discovery order.
type Result struct {
	Timed     []string
	Birthdays []string
	AllDay    []string
}

// sourceEvents is the per-source query outcome. A failed source carries its
// error here instead of aborting the cycle; the aggregator filters successes.
type sourceEvents struct {
	source types.CalendarSource
	events []Event
	err    error
}

// Aggregator queries the configured calendars for "today" in the configured
// time zone.
type Aggregator struct {
	names        []string
	location     *time.Location
	maxPerSource int64
	logger       *slog.Logger
	now          func() time.Time // injectable for tests
}

// NewAggregator creates an Aggregator for the fixed, ordered list of calendar
// names in the given time zone.
func NewAggregator(names []string, location *time.Location, maxPerSource int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		names:        names,
		location:     location,
		maxPerSource: int64(maxPerSource),
		logger:       logger,
		now:          time.Now,
	}
}

// todayWindow computes [local midnight, local midnight + 1 day) in the
// aggregator's time zone.
func (a *Aggregator) todayWindow() (time.Time, time.Time) {
	now := a.now().In(a.location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.location)
	return start, start.AddDate(0, 0, 1)
}

// resolveSources matches the configured names against the account's calendar
// list by exact name. Unmatched names are silently skipped; zero matches is
// an error (not_found_calendar).
func (a *Aggregator) resolveSources(ctx context.Context, api API) ([]types.CalendarSource, error) {
	available, err := api.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]types.CalendarSource, len(available))
	for _, src := range available {
		byName[src.Name] = src
	}

	var resolved []types.CalendarSource
	for _, name := range a.names {
		src, ok := byName[name]
		if !ok {
			continue
		}
		resolved = append(resolved, src)
	}

	if len(resolved) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundCalendar,
			"no calendars matched the configured names",
			nil,
		)
	}
	return resolved, nil
}

// Today aggregates today's events across the configured calendars.
//
// A query failure for one source is recorded, logged, and skipped; it never
// aborts aggregation for the other sources. Only zero resolvable calendars
// (or a failed calendar-list call) aborts the whole aggregation.
func (a *Aggregator) Today(ctx context.Context, api API) (Result, error) {
	sources, err := a.resolveSources(ctx, api)
	if err != nil {
		return Result{}, err
	}

	from, to := a.todayWindow()

	// Query sources in parallel with per-source error isolation. Results are
	// written to fixed indexes so the configured calendar order is preserved
	// regardless of completion order.
	results := make([]sourceEvents, len(sources))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(sourceConcurrencyLimit)

	for i, src := range sources {
		g.Go(func() error {
			events, qErr := api.ListEvents(gCtx, src.ID, from, to, a.maxPerSource)
			results[i] = sourceEvents{source: src, events: events, err: qErr}
			// Never propagate: a failed source must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	var formatted []types.FormattedEvent
	for _, res := range results {
		if res.err != nil {
			a.logger.WarnContext(ctx, "calendar source query failed, skipping",
				"calendar", res.source.Name,
				"error", res.err,
			)
			continue
		}
		for _, ev := range res.events {
			formatted = append(formatted, a.classify(ev, res.source))
		}
	}

	return splitAndSort(formatted), nil
}

// splitAndSort partitions formatted events by category and stable-sorts the
// timed list by original start instant (ties keep discovery order).
func splitAndSort(events []types.FormattedEvent) Result {
	var timed []types.FormattedEvent
	var result Result

	for _, ev := range events {
		switch ev.Category {
		case types.EventTimed:
			timed = append(timed, ev)
		case types.EventBirthday:
			result.Birthdays = append(result.Birthdays, ev.Description)
		case types.EventAllDay:
			result.AllDay = append(result.AllDay, ev.Description)
		}
	}

	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].SortKey.Before(timed[j].SortKey)
	})
	for _, ev := range timed {
		result.Timed = append(result.Timed, ev.Description)
	}

	return result
}
