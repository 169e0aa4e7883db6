package followup

import "time"

// Config carries the tunables exposed as environment variables
// (FOLLOWUP_START_HOUR/END_HOUR, FOLLOWUP_TZ, MIGRATION_MODE_UNTIL),
// resolved once at startup by config.FromEnv and handed to the
// scheduler.
type Config struct {
	TZ                 *time.Location
	StartHour          int
	EndHour            int
	AllowedWeekdays    map[time.Weekday]bool
	MigrationModeUntil time.Time
}

// DefaultAllowedWeekdays is Monday..Saturday.
func DefaultAllowedWeekdays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
		time.Saturday:  true,
	}
}
