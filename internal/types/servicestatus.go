package types

import (
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/samber/lo"
)

// ServiceStatus is the provisioning lifecycle state of a client service.
type ServiceStatus string

const (
	ServiceStatusActive    ServiceStatus = "active"
	ServiceStatusCanceled  ServiceStatus = "canceled"
	ServiceStatusPending   ServiceStatus = "pending"
	ServiceStatusSuspended ServiceStatus = "suspended"
	ServiceStatusInReview  ServiceStatus = "in_review"
)

var ServiceStatusValues = []ServiceStatus{
	ServiceStatusActive,
	ServiceStatusCanceled,
	ServiceStatusPending,
	ServiceStatusSuspended,
	ServiceStatusInReview,
}

// serviceStatusTransitions lists the allowed next states per state.
// Canceled is terminal.
var serviceStatusTransitions = map[ServiceStatus][]ServiceStatus{
	ServiceStatusInReview:  {ServiceStatusPending, ServiceStatusCanceled},
	ServiceStatusPending:   {ServiceStatusActive, ServiceStatusCanceled},
	ServiceStatusActive:    {ServiceStatusSuspended, ServiceStatusCanceled},
	ServiceStatusSuspended: {ServiceStatusActive, ServiceStatusCanceled},
	ServiceStatusCanceled:  {},
}

func (s ServiceStatus) String() string {
	return string(s)
}

func (s ServiceStatus) Validate() error {
	if !lo.Contains(ServiceStatusValues, s) {
		return ierr.NewError("invalid service status").
			WithHint("Service status must be active, canceled, pending, suspended or in_review").
			WithReportableDetails(map[string]any{
				"allowed_values": ServiceStatusValues,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanTransitionTo reports whether the status may move to next.
func (s ServiceStatus) CanTransitionTo(next ServiceStatus) bool {
	return lo.Contains(serviceStatusTransitions[s], next)
}
