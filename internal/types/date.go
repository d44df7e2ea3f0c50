package types

import (
	"fmt"
	"time"
)

// NextBillingDate calculates the next billing boundary from the given start
// time, billing interval, and interval count (the frequency multiplier).
// For example:
// - If the interval is monthly and the count is 2, we add two months.
// - If the interval is yearly and the count is 1, we add one year.
// - If the interval is weekly and the count is 3, we add 21 days (3 weeks).
// - If the interval is quarterly and the count is 1, we add three months.
// Month arithmetic is clamped so Jan 31 + 1 month lands on the last day of
// February instead of spilling into March.
func NextBillingDate(start time.Time, count int, interval BillingInterval) (time.Time, error) {
	if count <= 0 {
		return start, fmt.Errorf("billing interval count must be a positive integer, got %d", count)
	}

	switch interval {
	case BillingIntervalDaily:
		return AddClampedDate(start, 0, 0, count), nil
	case BillingIntervalWeekly:
		return AddClampedDate(start, 0, 0, 7*count), nil
	case BillingIntervalMonthly:
		return AddClampedDate(start, 0, count, 0), nil
	case BillingIntervalQuarterly:
		return AddClampedDate(start, 0, 3*count, 0), nil
	case BillingIntervalYearly:
		return AddClampedDate(start, count, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing interval: %s", interval)
	}
}

// AddClampedDate behaves like time.AddDate except that an out-of-range day
// of month is clamped to the last valid day instead of normalizing forward.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d + days
	if newD > lastDay && days == 0 {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}
