package followup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSourceForUserChatwootPrefix(t *testing.T) {
	assert.Equal(t, "chatwoot", sourceForUser("chatwoot_123"))
}

func TestSourceForUserDefaultsToWhatsApp(t *testing.T) {
	assert.Equal(t, "whatsapp", sourceForUser("5491122334455"))
}

func TestNextValidWindowReturnsSameInstantWhenAlreadyValid(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{
		TZ:              time.UTC,
		StartHour:       9,
		EndHour:         21,
		AllowedWeekdays: DefaultAllowedWeekdays(),
	})

	// Wednesday 2026-08-05 10:00 UTC is inside the window and an allowed weekday
	from := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	got := s.nextValidWindow(from)
	assert.Equal(t, from, got)
}

func TestNextValidWindowAdvancesPastEndHourToNextDayStart(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{
		TZ:              time.UTC,
		StartHour:       9,
		EndHour:         21,
		AllowedWeekdays: DefaultAllowedWeekdays(),
	})

	from := time.Date(2026, 8, 5, 22, 0, 0, 0, time.UTC) // Wednesday 22:00, past end hour
	got := s.nextValidWindow(from)
	assert.Equal(t, time.Date(2026, 8, 6, 9, 0, 0, 0, time.UTC), got)
}

func TestNextValidWindowSkipsDisallowedWeekday(t *testing.T) {
	weekdays := DefaultAllowedWeekdays()
	delete(weekdays, time.Sunday) // already excluded by default, kept explicit for clarity

	s := New(nil, nil, nil, nil, Config{
		TZ:              time.UTC,
		StartHour:       9,
		EndHour:         21,
		AllowedWeekdays: weekdays,
	})

	// Saturday 22:00 -> Sunday excluded -> next valid is Monday 09:00
	from := time.Date(2026, 8, 8, 22, 0, 0, 0, time.UTC) // Saturday
	got := s.nextValidWindow(from)
	assert.Equal(t, time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC), got) // Monday
}

func TestNextValidWindowBeforeStartHourSameDay(t *testing.T) {
	s := New(nil, nil, nil, nil, Config{
		TZ:              time.UTC,
		StartHour:       9,
		EndHour:         21,
		AllowedWeekdays: DefaultAllowedWeekdays(),
	})

	from := time.Date(2026, 8, 5, 3, 0, 0, 0, time.UTC)
	got := s.nextValidWindow(from)
	assert.Equal(t, time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC), got)
}
