package service

import (
	"github.com/omnibill/omnibill/internal/config"
	"github.com/omnibill/omnibill/internal/domain/coupon"
	"github.com/omnibill/omnibill/internal/domain/currency"
	"github.com/omnibill/omnibill/internal/domain/invoice"
	"github.com/omnibill/omnibill/internal/domain/pricing"
	"github.com/omnibill/omnibill/internal/domain/recurringinvoice"
	svc "github.com/omnibill/omnibill/internal/domain/service"
	"github.com/omnibill/omnibill/internal/domain/tax"
	"github.com/omnibill/omnibill/internal/domain/transaction"
	"github.com/omnibill/omnibill/internal/logger"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	// Repositories
	TaxRuleRepo          tax.Repository
	CouponRepo           coupon.Repository
	InvoiceRepo          invoice.Repository
	RecurringInvoiceRepo recurringinvoice.Repository
	TransactionRepo      transaction.Repository
	ServiceRepo          svc.Repository
	PricingRepo          pricing.Repository

	// Converter resolves currency conversion through the company's rates
	Converter currency.Converter
}

// ProvisioningPort is the capability interface callers use to run module
// side effects around a billed service change. Provisioning is never
// intermixed with the proration math itself.
type ProvisioningPort interface {
	BeforeChange(oldService, newService *svc.Service) error
	AfterChange(oldService, newService *svc.Service) error
}
