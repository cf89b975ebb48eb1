package service

import (
	"time"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/domain/pricing"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// Service is a client's provisioned instance of a package.
type Service struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	PackageID string `json:"package_id"`
	PricingID string `json:"pricing_id"`

	// OverridePrice replaces the package pricing's price when set
	OverridePrice    *decimal.Decimal `json:"override_price,omitempty"`
	OverrideCurrency *string          `json:"override_currency,omitempty"`

	Quantity decimal.Decimal `json:"quantity"`
	CouponID *string         `json:"coupon_id,omitempty"`

	// Renewal dates mutate only through the renewal and proration flows
	DateRenews      *time.Time `json:"date_renews,omitempty"`
	DateLastRenewed *time.Time `json:"date_last_renewed,omitempty"`
	DateCreated     time.Time  `json:"date_created"`

	ServiceStatus types.ServiceStatus     `json:"service_status"`
	Options       []pricing.PackageOption `json:"options,omitempty"`
	types.BaseModel
}

func (s *Service) Validate() error {
	if err := s.ServiceStatus.Validate(); err != nil {
		return err
	}
	if s.Quantity.IsNegative() {
		return ierr.NewError("service quantity cannot be negative").
			WithReportableDetails(map[string]any{
				"service_id": s.ID,
				"quantity":   s.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TransitionStatus moves the service to the next lifecycle status, rejecting
// transitions the lifecycle does not allow (canceled is terminal).
func (s *Service) TransitionStatus(next types.ServiceStatus) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if !s.ServiceStatus.CanTransitionTo(next) {
		return ierr.NewError("invalid service status transition").
			WithHintf("cannot move service from %s to %s", s.ServiceStatus, next).
			WithReportableDetails(map[string]any{
				"service_id": s.ID,
				"from":       s.ServiceStatus,
				"to":         next,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	s.ServiceStatus = next
	return nil
}

// EffectivePrice returns the override price when set, else the pricing's price.
func (s *Service) EffectivePrice(p *pricing.PackagePricing) decimal.Decimal {
	if s.OverridePrice != nil {
		return *s.OverridePrice
	}
	return p.Price
}

// EffectiveCurrency returns the override currency when set, else the pricing's.
func (s *Service) EffectiveCurrency(p *pricing.PackagePricing) string {
	if s.OverrideCurrency != nil {
		return *s.OverrideCurrency
	}
	return p.Currency
}
