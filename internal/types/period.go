package types

import (
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriod is the unit a package pricing term is expressed in.
type BillingPeriod string

const (
	BillingPeriodDay     BillingPeriod = "day"
	BillingPeriodWeek    BillingPeriod = "week"
	BillingPeriodMonth   BillingPeriod = "month"
	BillingPeriodYear    BillingPeriod = "year"
	BillingPeriodOnetime BillingPeriod = "onetime"
)

var BillingPeriodValues = []BillingPeriod{
	BillingPeriodDay,
	BillingPeriodWeek,
	BillingPeriodMonth,
	BillingPeriodYear,
	BillingPeriodOnetime,
}

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Validate() error {
	if !lo.Contains(BillingPeriodValues, p) {
		return ierr.NewError("invalid billing period").
			WithHint("Billing period must be day, week, month, year or onetime").
			WithReportableDetails(map[string]any{
				"allowed_values": BillingPeriodValues,
				"provided_value": p,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsRecurring reports whether the period repeats. Onetime packages never renew.
func (p BillingPeriod) IsRecurring() bool {
	return p != BillingPeriodOnetime
}
