package mandates

import "time"

const (
	debitHour     = 9
	debitInterval = 7 * 24 * time.Hour
)

// DaysUntilMonday counts days to the next Monday in loc; on a Monday it is 7.
func DaysUntilMonday(now time.Time, loc *time.Location) int {
	days := (8 - int(now.In(loc).Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return days
}

// NextMonday is 09:00 local on the next Monday strictly after today.
func NextMonday(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	d := local.AddDate(0, 0, DaysUntilMonday(now, loc))
	return time.Date(d.Year(), d.Month(), d.Day(), debitHour, 0, 0, 0, loc)
}

func IsMonday(now time.Time, loc *time.Location) bool {
	return now.In(loc).Weekday() == time.Monday
}

// WeekStartLocal is 00:00 local on the Monday of now's week.
func WeekStartLocal(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	d := local.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// DebitWindow is the calendar date of WeekStartLocal, stored as UTC midnight
// so the value is stable across drivers and zones.
func DebitWindow(now time.Time, loc *time.Location) time.Time {
	start := WeekStartLocal(now, loc)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// IsDebitDue reports whether a mandate has gone a full week without a confirmed debit.
func IsDebitDue(lastDebit *time.Time, now time.Time) bool {
	if lastDebit == nil {
		return true
	}
	return now.Sub(*lastDebit) >= debitInterval
}
