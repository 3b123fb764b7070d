/**
 * @description
 * Pure calendar arithmetic for billing cycles. Nothing in this file touches
 * a clock, a database or the network; callers pass the reference date in.
 */
package app

import "time"

// Cycle describes the billing period a reference date falls into.
type Cycle struct {
	Start time.Time
	End   time.Time
	// AtBoundary is true when the reference date's month is a cycle-start
	// month, i.e. a renewal invoice is due for this cycle.
	AtBoundary bool
}

// CurrentCycle maps (subscription window, plan duration in months,
// reference date) onto the current billing cycle. The second return value
// is false when today falls outside the subscription window
// [start_date, end_date]; both bounds are inclusive.
//
// The comparison is month-granular: today's day-of-month is never compared
// against the start date's day-of-month, so a subscription started on the
// 31st renews on any day of its anniversary month. Intentional, matches
// the production behaviour this engine replaces.
func CurrentCycle(startDate, endDate time.Time, durationMonths int, today time.Time) (Cycle, bool) {
	if durationMonths < 1 {
		return Cycle{}, false
	}

	start := dateOf(startDate)
	end := dateOf(endDate)
	day := dateOf(today)

	if day.Before(start) || day.After(end) {
		return Cycle{}, false
	}

	monthsSince := (day.Year()-start.Year())*12 + int(day.Month()) - int(start.Month())

	cycleIndex := monthsSince / durationMonths
	cycleStart := addMonths(start, cycleIndex*durationMonths)
	cycleEnd := addMonths(cycleStart, durationMonths)

	return Cycle{
		Start:      cycleStart,
		End:        cycleEnd,
		AtBoundary: monthsSince%durationMonths == 0,
	}, true
}

// dateOf truncates a timestamp to a UTC calendar date.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addMonths adds calendar months, clamping to the last day of the target
// month instead of letting Go's AddDate normalise Jan 31 + 1 month into
// March 2/3.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, time.Month(int(m)+months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, t.Location())
}
