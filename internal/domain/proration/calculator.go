package proration

import (
	"time"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

const secondsPerDay = 86400

// Calculator performs anchor-day proration math for one company. All
// calculations are pure; day boundaries are evaluated in the company's
// business timezone and resulting dates are returned in UTC.
type Calculator struct {
	proRataDay int
	cutoffDay  int
	loc        *time.Location
}

// NewCalculator builds a calculator from the company's billing context.
func NewCalculator(billing types.BillingContext) (*Calculator, error) {
	if err := billing.Validate(); err != nil {
		return nil, err
	}
	loc, err := billing.Location()
	if err != nil {
		return nil, err
	}
	return &Calculator{
		proRataDay: billing.ProRataDay,
		cutoffDay:  billing.CutoffDay,
		loc:        loc,
	}, nil
}

// IsAnchorDay reports whether the date falls on the pro rata day in the
// business timezone. Always false when no pro rata day is configured.
func (c *Calculator) IsAnchorDay(date time.Time) bool {
	if c.proRataDay == 0 {
		return false
	}
	return date.In(c.loc).Day() == c.proRataDay
}

// anchorsToDayOfMonth reports whether the period granularity aligns to a fixed
// day of month. Daily and weekly cycles have no such anchor.
func anchorsToDayOfMonth(period types.BillingPeriod) bool {
	return period == types.BillingPeriodMonth || period == types.BillingPeriodYear
}

// nextAnchor returns midnight of the next occurrence of the pro rata day
// strictly after-or-on the month of start. A start already past the anchor day
// rolls into the next month.
func (c *Calculator) nextAnchor(start time.Time) time.Time {
	st := start.In(c.loc)
	y, m, d := st.Date()
	if d < c.proRataDay {
		return time.Date(y, m, c.proRataDay, 0, 0, 0, 0, c.loc)
	}
	return time.Date(y, m+1, c.proRataDay, 0, 0, 0, 0, c.loc)
}

// DaysToProrate returns the number of days between start and the next
// occurrence of the pro rata day. The result is NotApplicable for period
// granularities without a day-of-month anchor or when no pro rata day is set.
func (c *Calculator) DaysToProrate(start time.Time, period types.BillingPeriod) DaysResult {
	if c.proRataDay == 0 || !anchorsToDayOfMonth(period) {
		return NotApplicable
	}
	if c.IsAnchorDay(start) {
		return DaysResult{Days: 0, Applicable: true}
	}
	return DaysResult{
		Days:       daysInDuration(start.In(c.loc), c.nextAnchor(start), c.loc),
		Applicable: true,
	}
}

// ProrateDate returns the UTC date the first partial billing cycle ends. A nil
// date with a nil error means start already falls on the anchor day and no
// proration is needed. Inputs that cannot anchor (no pro rata day, or a
// daily/weekly/onetime period) are indeterminate.
func (c *Calculator) ProrateDate(start time.Time, period types.BillingPeriod) (*time.Time, error) {
	if c.proRataDay == 0 || !anchorsToDayOfMonth(period) {
		return nil, ierr.NewError("prorate date cannot be determined").
			WithHintf("period %s has no day-of-month anchor or no pro rata day is set", period).
			WithReportableDetails(map[string]any{
				"period":       period,
				"pro_rata_day": c.proRataDay,
			}).
			Mark(ierr.ErrIndeterminate)
	}
	if c.IsAnchorDay(start) {
		return nil, nil
	}
	anchor := c.nextAnchor(start).UTC()
	return &anchor, nil
}

// ProratePrice scales fullPrice by the fraction of the full period the partial
// period covers. The full period length is found by advancing term periods
// from start and counting elapsed seconds. Onetime periods and inputs that
// cannot be prorated return fullPrice unchanged. Set allowAllPeriods to
// prorate daily/weekly periods against an explicit prorate date.
func (c *Calculator) ProratePrice(
	fullPrice decimal.Decimal,
	start time.Time,
	term int,
	period types.BillingPeriod,
	allowAllPeriods bool,
	explicitProrateDate *time.Time,
) (decimal.Decimal, error) {
	if period == types.BillingPeriodOnetime {
		return fullPrice, nil
	}
	if !anchorsToDayOfMonth(period) && !allowAllPeriods {
		return fullPrice, nil
	}

	var prorateDate time.Time
	if explicitProrateDate != nil {
		prorateDate = *explicitProrateDate
	} else {
		computed, err := c.ProrateDate(start, period)
		if err != nil {
			if ierr.IsIndeterminate(err) {
				return fullPrice, nil
			}
			return decimal.Zero, err
		}
		if computed == nil {
			// already on the anchor day, nothing to prorate
			return fullPrice, nil
		}
		prorateDate = *computed
	}

	periodEnd, err := types.NextBillingDate(start, term, period)
	if err != nil {
		return decimal.Zero, err
	}
	totalDays := decimal.NewFromFloat(periodEnd.Sub(start).Seconds() / secondsPerDay)
	if totalDays.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ierr.NewError("invalid billing period").
			WithHintf("period from %v to %v has no duration", start, periodEnd).
			Mark(ierr.ErrValidation)
	}

	days := daysInDuration(start.In(c.loc), prorateDate.In(c.loc), c.loc)
	if days <= 0 {
		return decimal.Zero, nil
	}

	return fullPrice.Mul(decimal.NewFromInt(int64(days))).Div(totalDays), nil
}

// ProratePriceBetween scales fullPrice by the fraction of a full term the span
// [from, to) covers. Used for mid-term changes where the remaining time until
// the renew date must be priced.
func (c *Calculator) ProratePriceBetween(
	fullPrice decimal.Decimal,
	from, to time.Time,
	term int,
	period types.BillingPeriod,
) (decimal.Decimal, error) {
	if period == types.BillingPeriodOnetime {
		return fullPrice, nil
	}
	if !to.After(from) {
		return decimal.Zero, nil
	}

	fullEnd, err := types.NextBillingDate(from, term, period)
	if err != nil {
		return decimal.Zero, err
	}
	totalSeconds := fullEnd.Sub(from).Seconds()
	if totalSeconds <= 0 {
		return decimal.Zero, ierr.NewError("invalid billing period").
			WithHintf("period from %v to %v has no duration", from, fullEnd).
			Mark(ierr.ErrValidation)
	}

	spanSeconds := to.Sub(from).Seconds()
	coefficient := decimal.NewFromFloat(spanSeconds).Div(decimal.NewFromFloat(totalSeconds))
	return fullPrice.Mul(coefficient), nil
}

// NeedsStubPeriod reports whether a service created at the given time must be
// billed an extra partial cycle after the first prorated period. The stub is
// only owed when the creation date falls after the cutoff day of month.
func (c *Calculator) NeedsStubPeriod(creationDate time.Time) bool {
	if c.cutoffDay == 0 || c.proRataDay == 0 {
		return false
	}
	return creationDate.In(c.loc).Day() > c.cutoffDay
}

// StubPeriod returns the extra cycle [anchor, anchor + term*period) billed
// when the cutoff rule triggers.
func (c *Calculator) StubPeriod(start time.Time, term int, period types.BillingPeriod) (*Period, error) {
	anchor, err := c.ProrateDate(start, period)
	if err != nil {
		return nil, err
	}
	stubStart := start
	if anchor != nil {
		stubStart = *anchor
	}
	end, err := types.NextBillingDate(stubStart, term, period)
	if err != nil {
		return nil, err
	}
	return &Period{Start: stubStart.UTC(), End: end.UTC()}, nil
}

// daysInDuration calculates the number of calendar days between two points in
// time, using the given timezone for day boundaries and handling DST
// transitions.
func daysInDuration(start, end time.Time, loc *time.Location) int {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	days := 0
	current := startDay
	for current.Before(endDay) {
		days++
		// Add 24 hours, then normalize to midnight to handle DST
		next := current.Add(24 * time.Hour)
		current = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, loc)
	}

	return days
}
