package types

import (
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	// InvoiceStatusActive is a finalized invoice awaiting (or having received) payment
	InvoiceStatusActive InvoiceStatus = "active"
	// InvoiceStatusDraft is an invoice still being assembled; never collectable
	InvoiceStatusDraft InvoiceStatus = "draft"
	// InvoiceStatusProforma is issued before work/service delivery; collectable
	InvoiceStatusProforma InvoiceStatus = "proforma"
	// InvoiceStatusVoid is a cancelled invoice; never collectable
	InvoiceStatusVoid InvoiceStatus = "void"
)

var InvoiceStatusValues = []InvoiceStatus{
	InvoiceStatusActive,
	InvoiceStatusDraft,
	InvoiceStatusProforma,
	InvoiceStatusVoid,
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	if !lo.Contains(InvoiceStatusValues, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Invoice status must be active, draft, proforma or void").
			WithReportableDetails(map[string]any{
				"allowed_values": InvoiceStatusValues,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Collectable reports whether payments apply toward closing the invoice.
func (s InvoiceStatus) Collectable() bool {
	return s == InvoiceStatusActive || s == InvoiceStatusProforma
}
