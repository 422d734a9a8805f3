package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	calendarapi "google.golang.org/api/calendar/v3"
)

func TestToEventTime_Instant(t *testing.T) {
	et := toEventTime(&calendarapi.EventDateTime{DateTime: "2026-08-30T09:00:00+02:00"})

	assert.False(t, et.AllDay())
	assert.Equal(t, 9, et.DateTime.Hour())
}

func TestToEventTime_DateOnly(t *testing.T) {
	et := toEventTime(&calendarapi.EventDateTime{Date: "2026-08-30"})

	assert.True(t, et.AllDay())
	assert.Equal(t, "2026-08-30", et.Date)
}

func TestToEventTime_MalformedInstantDegradesToAllDay(t *testing.T) {
	et := toEventTime(&calendarapi.EventDateTime{DateTime: "yesterday-ish", Date: "2026-08-30"})

	assert.True(t, et.AllDay())
	assert.Equal(t, "2026-08-30", et.Date)
}

func TestToEventTime_Nil(t *testing.T) {
	et := toEventTime(nil)
	assert.True(t, et.AllDay())
	assert.True(t, et.DateTime.Equal(time.Time{}))
}
