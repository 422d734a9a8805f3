package calendar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendabot/internal/types"
)

// fakeAPI is an in-memory calendar API. Queries run concurrently, so the
// recorded window is guarded.
type fakeAPI struct {
	calendars  []types.CalendarSource
	eventsByID map[string][]Event
	failByID   map[string]error
	listErr    error

	mu           sync.Mutex
	listedWindow [2]time.Time
}

func (f *fakeAPI) ListCalendars(_ context.Context) ([]types.CalendarSource, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.calendars, nil
}

func (f *fakeAPI) ListEvents(_ context.Context, calendarID string, from, to time.Time, _ int64) ([]Event, error) {
	f.mu.Lock()
	f.listedWindow = [2]time.Time{from, to}
	f.mu.Unlock()
	if err, ok := f.failByID[calendarID]; ok {
		return nil, err
	}
	return f.eventsByID[calendarID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAggregator pins "now" to a known instant in Madrid.
func newTestAggregator(names []string) (*Aggregator, *time.Location) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(err)
	}
	a := NewAggregator(names, madrid, 10, testLogger())
	a.now = func() time.Time {
		return time.Date(2026, 8, 30, 11, 15, 0, 0, madrid)
	}
	return a, madrid
}

func timedEvent(title string, start, end time.Time) Event {
	return Event{
		Title: title,
		Start: EventTime{DateTime: start},
		End:   EventTime{DateTime: end},
	}
}

func allDayEvent(title, date string) Event {
	return Event{
		Title: title,
		Start: EventTime{Date: date},
		End:   EventTime{Date: date},
	}
}

func TestAggregator_Today_ClassifiesAndFormats(t *testing.T) {
	agg, madrid := newTestAggregator([]string{"Personal", "Cumpleaños", "Festivos"})
	day := func(h, m int) time.Time {
		return time.Date(2026, 8, 30, h, m, 0, 0, madrid)
	}

	api := &fakeAPI{
		calendars: []types.CalendarSource{
			{Name: "Personal", ID: "p", ColorID: "5"},
			{Name: "Cumpleaños", ID: "b", ColorID: "1"},
			{Name: "Festivos", ID: "f", ColorID: "99"},
		},
		eventsByID: map[string][]Event{
			"p": {timedEvent("Dentista", day(16, 30), day(17, 0))},
			"b": {allDayEvent("Marta", "2026-08-30")},
			"f": {allDayEvent("Fiesta local", "2026-08-30")},
		},
	}

	result, err := agg.Today(context.Background(), api)
	require.NoError(t, err)

	assert.Equal(t, []string{"🔵 De 16:30 a 17:00: Dentista"}, result.Timed)
	assert.Equal(t, []string{"🎂 Hoy es el cumpleaños de Marta"}, result.Birthdays)
	// Unmapped colorId falls back to the default indicator.
	assert.Equal(t, []string{"🔘 Hoy es el día de Fiesta local"}, result.AllDay)
}

func TestAggregator_Today_TimedSortIsStable(t *testing.T) {
	agg, madrid := newTestAggregator([]string{"A", "B"})
	day := func(h, m int) time.Time {
		return time.Date(2026, 8, 30, h, m, 0, 0, madrid)
	}

	// A yields 10:00 then 09:00 "first"; B yields 09:00 "second". The two
	// 09:00 events must keep discovery order (A before B).
	api := &fakeAPI{
		calendars: []types.CalendarSource{
			{Name: "A", ID: "a", ColorID: "1"},
			{Name: "B", ID: "b", ColorID: "1"},
		},
		eventsByID: map[string][]Event{
			"a": {
				timedEvent("late", day(10, 0), day(11, 0)),
				timedEvent("first", day(9, 0), day(10, 0)),
			},
			"b": {timedEvent("second", day(9, 0), day(9, 30))},
		},
	}

	result, err := agg.Today(context.Background(), api)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"🔴 De 09:00 a 10:00: first",
		"🔴 De 09:00 a 09:30: second",
		"🔴 De 10:00 a 11:00: late",
	}, result.Timed)
}

func TestAggregator_Today_SourceFailureIsIsolated(t *testing.T) {
	agg, madrid := newTestAggregator([]string{"Good", "Bad"})

	api := &fakeAPI{
		calendars: []types.CalendarSource{
			{Name: "Good", ID: "g", ColorID: "4"},
			{Name: "Bad", ID: "x", ColorID: "4"},
		},
		eventsByID: map[string][]Event{
			"g": {timedEvent("Standup", time.Date(2026, 8, 30, 9, 0, 0, 0, madrid), time.Date(2026, 8, 30, 9, 15, 0, 0, madrid))},
		},
		failByID: map[string]error{
			"x": errors.New("backend unavailable"),
		},
	}

	result, err := agg.Today(context.Background(), api)
	require.NoError(t, err)

	assert.Len(t, result.Timed, 1)
}

func TestAggregator_Today_ZeroResolvedCalendarsFails(t *testing.T) {
	agg, _ := newTestAggregator([]string{"Nope"})

	api := &fakeAPI{
		calendars: []types.CalendarSource{{Name: "Personal", ID: "p"}},
	}

	_, err := agg.Today(context.Background(), api)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundCalendar, appErr.Code)
}

func TestAggregator_Today_UnmatchedNamesAreSkipped(t *testing.T) {
	agg, _ := newTestAggregator([]string{"Personal", "Gone"})

	api := &fakeAPI{
		calendars:  []types.CalendarSource{{Name: "Personal", ID: "p", ColorID: "2"}},
		eventsByID: map[string][]Event{"p": nil},
	}

	result, err := agg.Today(context.Background(), api)
	require.NoError(t, err)
	assert.Empty(t, result.Timed)
}

func TestAggregator_Today_ListCalendarsFailureAborts(t *testing.T) {
	agg, _ := newTestAggregator([]string{"Personal"})
	api := &fakeAPI{listErr: errors.New("auth expired")}

	_, err := agg.Today(context.Background(), api)
	require.Error(t, err)
}

func TestAggregator_TodayWindow(t *testing.T) {
	agg, madrid := newTestAggregator([]string{"Personal"})
	api := &fakeAPI{
		calendars:  []types.CalendarSource{{Name: "Personal", ID: "p"}},
		eventsByID: map[string][]Event{"p": nil},
	}

	_, err := agg.Today(context.Background(), api)
	require.NoError(t, err)

	wantFrom := time.Date(2026, 8, 30, 0, 0, 0, 0, madrid)
	assert.True(t, api.listedWindow[0].Equal(wantFrom), "window start %v", api.listedWindow[0])
	assert.True(t, api.listedWindow[1].Equal(wantFrom.AddDate(0, 0, 1)), "window end %v", api.listedWindow[1])
}

func TestIsBirthdaySource(t *testing.T) {
	assert.True(t, isBirthdaySource("Birthdays"))
	assert.True(t, isBirthdaySource("birthdays"))
	assert.True(t, isBirthdaySource("Cumpleaños"))
	assert.False(t, isBirthdaySource("Personal"))
}

func TestClassify_BirthdayBeatsAllDay(t *testing.T) {
	agg, _ := newTestAggregator([]string{"Cumpleaños"})

	formatted := agg.classify(
		allDayEvent("Ana", "2026-08-30"),
		types.CalendarSource{Name: "Cumpleaños", ColorID: "1"},
	)

	assert.Equal(t, types.EventBirthday, formatted.Category)
	assert.Equal(t, "🎂 Hoy es el cumpleaños de Ana", formatted.Description)
}

func TestClassify_TimedUsesLocalClock(t *testing.T) {
	agg, _ := newTestAggregator([]string{"Personal"})

	// A UTC instant must render in the configured zone (CEST, +2 in August).
	start := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	formatted := agg.classify(
		timedEvent("Correr", start, end),
		types.CalendarSource{Name: "Personal", ColorID: "3"},
	)

	assert.Equal(t, types.EventTimed, formatted.Category)
	assert.Equal(t, "🟡 De 09:00 a 10:00: Correr", formatted.Description)
}
