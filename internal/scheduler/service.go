// Package scheduler runs the daily digest cycle: proactive credential check,
// event aggregation, forecast fetch, digest composition, and delivery. It
// owns the overlap guard that keeps at most one cycle in flight and the
// last-run record in the state store.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"agendabot/internal/auth"
	"agendabot/internal/calendar"
	"agendabot/internal/db"
	"agendabot/internal/digest"
	"agendabot/internal/types"
)

// Messenger delivers one outbound message body. Implemented by the Twilio
// adapter in the bot package; tests use a recording fake.
type Messenger interface {
	Send(ctx context.Context, body string) error
}

// ForecastFetcher fetches the parsed daily forecast for a municipality code.
type ForecastFetcher interface {
	DailyForecast(ctx context.Context, municipalityCode string) (types.Forecast, error)
}

// CalendarAPIFactory builds a calendar API bound to the latest persisted
// credential. Re-invoked every cycle so a renewed credential takes effect
// immediately.
type CalendarAPIFactory func(ctx context.Context) (calendar.API, error)

// Service executes aggregation cycles. All remote failures degrade: a cycle
// always produces a digest, possibly with empty sections, and only delivery
// failures surface as errors.
type Service struct {
	auth       *auth.Manager
	aggregator *calendar.Aggregator
	apiFactory CalendarAPIFactory
	forecasts  ForecastFetcher
	composer   *digest.Composer
	messenger  Messenger
	state      db.StateStore
	defaultLoc types.Location
	logger     *slog.Logger
	now        func() time.Time

	// cycleMu serializes digest cycles: a scheduled run and a manual trigger
	// racing each other must not both send.
	cycleMu sync.Mutex
}

// NewService wires a digest cycle service.
func NewService(
	authManager *auth.Manager,
	aggregator *calendar.Aggregator,
	apiFactory CalendarAPIFactory,
	forecasts ForecastFetcher,
	composer *digest.Composer,
	messenger Messenger,
	state db.StateStore,
	defaultLoc types.Location,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auth:       authManager,
		aggregator: aggregator,
		apiFactory: apiFactory,
		forecasts:  forecasts,
		composer:   composer,
		messenger:  messenger,
		state:      state,
		defaultLoc: defaultLoc,
		logger:     logger,
		now:        time.Now,
	}
}

// SendDailyUpdate runs one guarded digest cycle. If another cycle is already
// in flight the call is skipped, not queued: the in-flight cycle is about to
// deliver the same digest.
func (s *Service) SendDailyUpdate(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		s.logger.WarnContext(ctx, "digest cycle already in flight, skipping trigger")
		return nil
	}
	defer s.cycleMu.Unlock()

	ctx = types.WithRequestID(ctx, uuid.NewString())
	s.logger.InfoContext(ctx, "digest cycle starting", "cycle_id", types.GetRequestID(ctx))

	// Eager credential check. Renewal failures never block the cycle; a
	// stale credential surfaces later as a per-source query failure.
	if result, err := s.auth.CheckAndRefresh(ctx); result != auth.RefreshValid {
		s.logger.WarnContext(ctx, "credential check did not renew",
			"result", string(result),
			"error", err,
		)
	}

	loc := s.location(ctx)
	events := s.collectEvents(ctx)
	forecast := s.collectForecast(ctx, loc)

	d := s.composer.Compose(loc.Municipality, forecast, events)

	for _, body := range []string{d.Greeting, d.Weather, d.Events} {
		if err := s.messenger.Send(ctx, body); err != nil {
			s.logger.ErrorContext(ctx, "digest delivery failed", "error", err)
			return err
		}
	}

	if err := s.state.SetLastRun(ctx, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to record last run time", "error", err)
	}

	s.logger.InfoContext(ctx, "digest cycle complete",
		"timed_events", len(events.Timed),
		"birthdays", len(events.Birthdays),
		"all_day_events", len(events.AllDay),
		"rain_intervals", len(forecast.RainIntervals),
	)
	return nil
}

// location returns the stored location selection, falling back to the
// configured default when none has been stored or the read fails.
func (s *Service) location(ctx context.Context) types.Location {
	loc, err := s.state.Location(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read stored location, using default", "error", err)
		return s.defaultLoc
	}
	if loc.Code == "" {
		return s.defaultLoc
	}
	return loc
}

// collectEvents aggregates today's events, degrading to an empty result when
// no API can be built or zero calendars resolve.
func (s *Service) collectEvents(ctx context.Context) calendar.Result {
	api, err := s.apiFactory(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "calendar unavailable for this cycle", "error", err)
		return calendar.Result{}
	}

	events, err := s.aggregator.Today(ctx, api)
	if err != nil {
		s.logger.ErrorContext(ctx, "event aggregation failed", "error", err)
		return calendar.Result{}
	}
	return events
}

// collectForecast fetches the daily forecast, degrading to unavailable
// day-parts on a fetch failure so the digest still goes out.
func (s *Service) collectForecast(ctx context.Context, loc types.Location) types.Forecast {
	forecast, err := s.forecasts.DailyForecast(ctx, loc.Code)
	if err != nil {
		s.logger.ErrorContext(ctx, "forecast fetch failed",
			"municipality", loc.Municipality,
			"error", err,
		)
		return types.Forecast{Parts: types.UnavailableDayParts()}
	}
	return forecast
}

// WeatherReport fetches the current-location forecast for the ad-hoc query
// path. Unlike the daily cycle, a fetch failure surfaces as an error so the
// bot can reply that the forecast is unavailable right now.
func (s *Service) WeatherReport(ctx context.Context) (string, types.Forecast, error) {
	loc := s.location(ctx)
	forecast, err := s.forecasts.DailyForecast(ctx, loc.Code)
	if err != nil {
		return loc.Municipality, types.Forecast{}, err
	}
	return loc.Municipality, forecast, nil
}

// EventsReport aggregates today's events for the ad-hoc query path. A
// zero-resolvable-calendars failure degrades to an empty result; only
// credential-level failures surface.
func (s *Service) EventsReport(ctx context.Context) (calendar.Result, error) {
	api, err := s.apiFactory(ctx)
	if err != nil {
		return calendar.Result{}, err
	}
	events, err := s.aggregator.Today(ctx, api)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundCalendar {
			s.logger.WarnContext(ctx, "no calendars resolved for ad-hoc query")
			return calendar.Result{}, nil
		}
		return calendar.Result{}, err
	}
	return events, nil
}

// CheckCredential runs the proactive credential check outside a digest cycle
// (periodic timer and the manual renewal keyword).
func (s *Service) CheckCredential(ctx context.Context) (auth.RefreshResult, error) {
	return s.auth.CheckAndRefresh(ctx)
}
