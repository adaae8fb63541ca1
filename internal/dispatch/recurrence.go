package dispatch

import (
	"fmt"
	"time"

	"github.com/mailcast/mailcast/internal/db"
)

// Recurrence intervals are flat calendar offsets. Monthly is a fixed 30 days,
// not true calendar-month arithmetic; existing schedules depend on it.
const (
	dailyInterval   = 24 * time.Hour
	weeklyInterval  = 7 * 24 * time.Hour
	monthlyInterval = 30 * 24 * time.Hour
)

// Interval returns the fixed offset for a recurrence rule.
func Interval(recurrence string) (time.Duration, error) {
	switch recurrence {
	case db.RecurrenceDaily:
		return dailyInterval, nil
	case db.RecurrenceWeekly:
		return weeklyInterval, nil
	case db.RecurrenceMonthly:
		return monthlyInterval, nil
	default:
		return 0, fmt.Errorf("unknown recurrence: %q", recurrence)
	}
}

// Next computes the fire time that follows prev under the recurrence rule.
// The increment is applied to the previous scheduled time, not to the clock,
// so a tick that runs late does not push the schedule forward with it.
func Next(prev time.Time, recurrence string) (time.Time, error) {
	interval, err := Interval(recurrence)
	if err != nil {
		return time.Time{}, err
	}
	return prev.Add(interval), nil
}

// ValidRecurrence reports whether the rule is one of daily, weekly, monthly.
func ValidRecurrence(recurrence string) bool {
	_, err := Interval(recurrence)
	return err == nil
}
