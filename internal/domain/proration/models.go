package proration

import (
	"time"
)

// Period is a half-open billing interval [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DaysResult is the outcome of a day-count calculation. Applicable is false
// when proration does not apply to the inputs (no anchor day configured, or a
// period granularity that does not anchor to a day of month); callers must
// then decide their own fallback, typically billing the full price unprorated.
type DaysResult struct {
	Days       int  `json:"days"`
	Applicable bool `json:"applicable"`
}

// NotApplicable is the sentinel day-count result.
var NotApplicable = DaysResult{Days: 0, Applicable: false}
