package event

import "time"

// Occurrence returns the month and day of this year's instance of a stored
// event date, for a given year in the user's location. A Feb 29 date maps to
// Mar 1 in non-leap years, so those users are still greeted every year.
func Occurrence(date time.Time, year int) (time.Month, int) {
	month, day := date.Month(), date.Day()
	if month == time.February && day == 29 && !isLeap(year) {
		return time.March, 1
	}
	return month, day
}

// Due reports whether an event should fire right now under the strict
// periodic-tick rule: the current date in the user's timezone matches the
// occurrence by month and day, the local time-of-day has reached or passed
// the fire time, and the message has not been sent yet.
//
// "Reached or passed" rather than strict equality tolerates poll-loop
// jitter; the month+day gate keeps a late tick from firing on the wrong day.
// Pure: no side effects, identical inputs give identical output.
func Due(now time.Time, date time.Time, loc *time.Location, fire FireTime, sent bool) bool {
	if sent {
		return false
	}
	local := now.In(loc)
	month, day := Occurrence(date, local.Year())
	if local.Month() != month || local.Day() != day {
		return false
	}
	tod := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return tod >= fire.seconds()
}

// DuePast is the relaxed recovery-sweep rule: the event's fire instant for
// the current (or previous, across a New Year boundary) occurrence has
// already passed, and no more than window ago. It catches deliveries missed
// while the process was down without greeting users whose occurrence is long
// gone — a record created in March with a January birthday stays silent until
// next year.
func DuePast(now time.Time, date time.Time, loc *time.Location, fire FireTime, window time.Duration, sent bool) bool {
	if sent {
		return false
	}
	local := now.In(loc)
	for _, year := range []int{local.Year(), local.Year() - 1} {
		month, day := Occurrence(date, year)
		fireAt := fire.on(year, month, day, loc)
		if !local.Before(fireAt) && local.Sub(fireAt) <= window {
			return true
		}
	}
	return false
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
