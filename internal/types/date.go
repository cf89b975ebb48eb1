package types

import (
	"time"

	ierr "github.com/omnibill/omnibill/internal/errors"
)

// NextBillingDate calculates the next billing date based on the given start time,
// the term (frequency multiplier) and billing period.
// For example:
// - If the period is month and term is 2, we add two months.
// - If the period is year and term is 1, we add one year.
// - If the period is week and term is 3, we add 21 days (3 weeks).
// - If the period is day and term is 10, we add 10 days.
// Month additions clamp to the last valid day of the target month so that e.g.
// Jan 31 + 1 month lands on Feb 28/29 instead of rolling into March.
func NextBillingDate(start time.Time, term int, period BillingPeriod) (time.Time, error) {
	if term <= 0 {
		return start, ierr.NewError("billing term must be a positive integer").
			WithHintf("got term %d", term).
			Mark(ierr.ErrValidation)
	}

	switch period {
	case BillingPeriodDay:
		return AddClampedDate(start, 0, 0, term), nil
	case BillingPeriodWeek:
		// 1 week = 7 days
		return AddClampedDate(start, 0, 0, 7*term), nil
	case BillingPeriodMonth:
		return AddClampedDate(start, 0, term, 0), nil
	case BillingPeriodYear:
		return AddClampedDate(start, term, 0, 0), nil
	default:
		return start, ierr.NewError("invalid billing period for renewal").
			WithHintf("period %s does not renew", period).
			Mark(ierr.ErrValidation)
	}
}

// AddClampedDate adds the given years, months and days to t, clamping the
// day-of-month to the last valid day of the resulting month. time.AddDate is
// not used directly because it normalizes overflowing days into the next month.
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

	newD := d
	if newD > lastDay {
		newD = lastDay
	}

	result := time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
	if days != 0 {
		result = result.AddDate(0, 0, days)
	}
	return result
}
